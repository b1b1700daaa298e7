// Package report renders snapshots of a level graph as CSV, JSON or YAML.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DrSkyle/levelgraph/pkg/graph"
)

// NodeRow is one node of a snapshot.
type NodeRow struct {
	ID        string   `json:"id" yaml:"id"`
	Reward    float64  `json:"reward" yaml:"reward"`
	Utility   float64  `json:"utility" yaml:"utility"`
	Terminal  bool     `json:"terminal" yaml:"terminal"`
	Depth     *int     `json:"depth,omitempty" yaml:"depth,omitempty"`
	OutDegree int      `json:"out_degree" yaml:"out_degree"`
	InDegree  int      `json:"in_degree" yaml:"in_degree"`
	Neighbors []string `json:"neighbors" yaml:"neighbors"`
}

type OutcomeRow struct {
	Node   string  `json:"node" yaml:"node"`
	Weight float64 `json:"weight" yaml:"weight"`
}

type EdgeRow struct {
	Source      string       `json:"source" yaml:"source"`
	Target      string       `json:"target" yaml:"target"`
	Probability []OutcomeRow `json:"probability" yaml:"probability"`
}

// Snapshot is a point-in-time copy of a graph.
type Snapshot struct {
	Start string    `json:"start" yaml:"start"`
	Nodes []NodeRow `json:"nodes" yaml:"nodes"`
	Edges []EdgeRow `json:"edges" yaml:"edges"`
}

// Format names an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts csv, json, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// TakeSnapshot copies g in insertion order. Depth is measured from start and
// left unset for nodes it cannot reach.
func TakeSnapshot(g graph.GraphStore, start string) (*Snapshot, error) {
	depth := map[string]int{}
	if g.HasNode(start) {
		var err error
		if depth, err = graph.Depths(g, start); err != nil {
			return nil, err
		}
	}

	snap := &Snapshot{Start: start, Nodes: []NodeRow{}, Edges: []EdgeRow{}}
	for _, id := range g.NodeIDs() {
		n, err := g.Node(id)
		if err != nil {
			return nil, err
		}
		incoming, err := g.IncomingEdges(id)
		if err != nil {
			return nil, err
		}
		row := NodeRow{
			ID:        id,
			Reward:    n.Reward,
			Utility:   n.Utility,
			Terminal:  n.Terminal,
			OutDegree: len(n.Neighbors),
			InDegree:  len(incoming),
			Neighbors: n.Neighbors.Sorted(),
		}
		if d, ok := depth[id]; ok {
			row.Depth = &d
		}
		snap.Nodes = append(snap.Nodes, row)
	}

	g.ForEachEdge(func(e *graph.Edge) {
		row := EdgeRow{Source: e.Source, Target: e.Target, Probability: []OutcomeRow{}}
		for _, o := range e.Probability {
			row.Probability = append(row.Probability, OutcomeRow{Node: o.Node, Weight: o.Weight})
		}
		snap.Edges = append(snap.Edges, row)
	})
	return snap, nil
}

// Write encodes the snapshot in format.
func Write(w io.Writer, snap *Snapshot, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, snap)
	case FormatJSON:
		return WriteJSON(w, snap)
	case FormatYAML:
		return WriteYAML(w, snap)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteCSV writes one row per node. Edge distributions are not included.
func WriteCSV(w io.Writer, snap *Snapshot) error {
	cw := csv.NewWriter(w)

	header := []string{
		"id",
		"reward",
		"utility",
		"terminal",
		"depth",
		"out_degree",
		"in_degree",
		"neighbors",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, n := range snap.Nodes {
		depth := ""
		if n.Depth != nil {
			depth = strconv.Itoa(*n.Depth)
		}
		record := []string{
			n.ID,
			formatFloat(n.Reward),
			formatFloat(n.Utility),
			strconv.FormatBool(n.Terminal),
			depth,
			strconv.Itoa(n.OutDegree),
			strconv.Itoa(n.InDegree),
			strings.Join(n.Neighbors, ";"),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func WriteYAML(w io.Writer, snap *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return err
	}
	return enc.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
