// Package level persists a level graph as a directory of segment files plus
// a graph.json document, on any storage.BlobStore.
package level

import (
	"encoding/json"
	"fmt"
)

// Layout of a level directory.
const (
	DocumentKey   = "graph.json"
	SegmentsDir   = "segments/"
	SegmentSuffix = ".txt"

	DefaultStart = "start"
	DefaultScale = 1.0
)

// StartPosition is where a freshly created start node is placed.
var StartPosition = Position{X: 0, Y: 200}

// Position is the editor canvas position of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OutcomeDoc is one entry of a stored edge distribution.
type OutcomeDoc struct {
	Node   string  `json:"node"`
	Weight float64 `json:"weight"`
}

// NodeDoc is one entry of the document's graph map. Terminal, Utility and
// Outcomes are omitted when unset, which keeps plain documents readable by
// tools that only know positions, rewards and neighbors.
type NodeDoc struct {
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Reward    float64  `json:"reward"`
	Neighbors []string `json:"neighbors"`
	Depth     *int     `json:"depth,omitempty"`

	Terminal bool    `json:"terminal,omitempty"`
	Utility  float64 `json:"utility,omitempty"`
	// Outcomes holds the distribution of each outgoing edge, by target.
	Outcomes map[string][]OutcomeDoc `json:"outcomes,omitempty"`
}

// Document is the on-disk graph.json format.
type Document struct {
	Scale float64            `json:"scale"`
	Graph map[string]NodeDoc `json:"graph"`
}

// DefaultDocument holds only the start node.
func DefaultDocument(start string) *Document {
	return &Document{
		Scale: DefaultScale,
		Graph: map[string]NodeDoc{
			start: {
				X:         StartPosition.X,
				Y:         StartPosition.Y,
				Reward:    0,
				Neighbors: []string{},
			},
		},
	}
}

// DecodeDocument parses graph.json content.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", DocumentKey, err)
	}
	if doc.Graph == nil {
		doc.Graph = make(map[string]NodeDoc)
	}
	if doc.Scale == 0 {
		doc.Scale = DefaultScale
	}
	return &doc, nil
}

// Encode renders the document as two-space indented JSON. Graph keys are
// sorted by encoding/json.
func (d *Document) Encode() ([]byte, error) {
	for id, n := range d.Graph {
		if n.Neighbors == nil {
			n.Neighbors = []string{}
			d.Graph[id] = n
		}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
