package graph

import "sort"

// Set is a set of node identifiers.
type Set map[string]struct{}

// NewSet builds a set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id string) {
	s[id] = struct{}{}
}

func (s Set) Remove(id string) {
	delete(s, id)
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Node is a level vertex.
type Node struct {
	ID       string
	Reward   float64
	Utility  float64
	Terminal bool

	// Neighbors holds the targets of this node's outgoing edges. The store
	// keeps it equal to {t : edge(ID, t) exists}.
	Neighbors Set
}

// Outcome is one entry of an edge's probability list.
type Outcome struct {
	Node   string
	Weight float64
}

// Edge is a directed connection, unique per ordered (Source, Target) pair.
type Edge struct {
	Source string
	Target string

	// Probability is an insertion-ordered weight distribution over next
	// states. The store does not normalize it.
	Probability []Outcome
}

// Key returns the edge's map key.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}

// TotalWeight sums the probability list.
func (e *Edge) TotalWeight() float64 {
	total := 0.0
	for _, o := range e.Probability {
		total += o.Weight
	}
	return total
}

// EdgeKey identifies an edge.
type EdgeKey struct {
	Source string
	Target string
}

// NodeOption overrides a default in AddDefaultNode.
type NodeOption func(*Node)

// WithReward sets the node reward. Defaults to 1.0.
func WithReward(r float64) NodeOption {
	return func(n *Node) {
		n.Reward = r
	}
}

// WithUtility sets the initial utility. Defaults to 0.
func WithUtility(u float64) NodeOption {
	return func(n *Node) {
		n.Utility = u
	}
}

// WithTerminal marks the node terminal.
func WithTerminal(terminal bool) NodeOption {
	return func(n *Node) {
		n.Terminal = terminal
	}
}

// WithNeighbors seeds the neighbor set. The caller is responsible for adding
// the matching edges.
func WithNeighbors(ids ...string) NodeOption {
	return func(n *Node) {
		n.Neighbors = NewSet(ids...)
	}
}
