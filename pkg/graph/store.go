package graph

import (
	"fmt"
	"math"
)

// GraphStore defines the level graph storage interface.
type GraphStore interface {
	// Node operations.
	Node(id string) (*Node, error)
	HasNode(id string) bool
	AddNode(node *Node) error
	AddDefaultNode(id string, opts ...NodeOption) error
	RemoveNode(id string) error
	NodeIDs() []string
	NodeCount() int

	// Edge operations.
	Edge(src, tgt string) (*Edge, error)
	HasEdge(src, tgt string) bool
	AddEdge(edge *Edge) error
	AddDefaultEdge(src, tgt string, probability ...Outcome) error
	RemoveEdge(src, tgt string) error
	EdgeCount() int

	// Queries and bulk access.
	IncomingEdges(id string) ([]*Edge, error)
	Neighbors(id string) (Set, error)
	SetUtilities(utilities map[string]float64) error
	Utility(id string) (float64, error)
	Reward(id string) (float64, error)
	IsTerminal(id string) (bool, error)
	ForEachNode(fn func(*Node))
	ForEachEdge(fn func(*Edge))
}

var _ GraphStore = (*Store)(nil)

// Store is an in-memory GraphStore.
//
// Store is not safe for concurrent use. Callers sharing one across goroutines
// must serialize access themselves.
type Store struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[EdgeKey]*Edge
	edgeOrder []EdgeKey
}

func NewStore() *Store {
	return &Store{
		nodes: make(map[string]*Node),
		edges: make(map[EdgeKey]*Edge),
	}
}

func (s *Store) Node(id string) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", ErrNotFound, id)
	}
	return n, nil
}

func (s *Store) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// AddNode inserts node. A nil neighbor set is replaced by an empty one; a
// populated set is taken as given.
func (s *Store) AddNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidArgument)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: empty node id", ErrInvalidArgument)
	}
	if _, exists := s.nodes[node.ID]; exists {
		return fmt.Errorf("%w: node %q", ErrDuplicate, node.ID)
	}
	if node.Neighbors == nil {
		node.Neighbors = make(Set)
	}

	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)
	return nil
}

// AddDefaultNode inserts a node with reward 1.0, utility 0, not terminal and
// no neighbors, unless overridden by opts.
func (s *Store) AddDefaultNode(id string, opts ...NodeOption) error {
	n := &Node{
		ID:     id,
		Reward: 1.0,
	}
	for _, opt := range opts {
		opt(n)
	}
	return s.AddNode(n)
}

// RemoveNode deletes id, every edge incident to it, and its entry in any
// edge's probability list. The removed weight is spread evenly over the list's
// remaining entries.
func (s *Store) RemoveNode(id string) error {
	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("%w: node %q", ErrNotFound, id)
	}

	var incident []EdgeKey
	for _, key := range s.edgeOrder {
		e := s.edges[key]
		if e.Source == id || e.Target == id {
			incident = append(incident, key)
		}

		// Every list is scanned, including those about to be deleted.
		e.Probability, _ = redistribute(e.Probability, id)
	}

	for _, key := range incident {
		s.unlink(key)
	}

	delete(s.nodes, id)
	s.nodeOrder = removeString(s.nodeOrder, id)
	return nil
}

// redistribute drops the first outcome naming id and adds its weight, split
// evenly, to the remaining outcomes. Order is preserved.
func redistribute(p []Outcome, id string) ([]Outcome, bool) {
	idx := -1
	for i, o := range p {
		if o.Node == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return p, false
	}

	removed := p[idx].Weight
	rest := make([]Outcome, 0, len(p)-1)
	rest = append(rest, p[:idx]...)
	rest = append(rest, p[idx+1:]...)
	if len(rest) == 0 {
		return rest, true
	}

	spread := removed / float64(len(rest))
	for i := range rest {
		rest[i].Weight += spread
	}
	return rest, true
}

func (s *Store) NodeIDs() []string {
	out := make([]string, len(s.nodeOrder))
	copy(out, s.nodeOrder)
	return out
}

func (s *Store) NodeCount() int {
	return len(s.nodes)
}

func (s *Store) Edge(src, tgt string) (*Edge, error) {
	e, ok := s.edges[EdgeKey{Source: src, Target: tgt}]
	if !ok {
		return nil, fmt.Errorf("%w: edge %q -> %q", ErrNotFound, src, tgt)
	}
	return e, nil
}

func (s *Store) HasEdge(src, tgt string) bool {
	_, ok := s.edges[EdgeKey{Source: src, Target: tgt}]
	return ok
}

// AddEdge registers edge and adds its target to the source's neighbor set.
// Both endpoints must already be nodes.
func (s *Store) AddEdge(edge *Edge) error {
	if edge == nil {
		return fmt.Errorf("%w: nil edge", ErrInvalidArgument)
	}
	if edge.Source == "" || edge.Target == "" {
		return fmt.Errorf("%w: edge endpoints must be non-empty", ErrInvalidArgument)
	}
	for _, end := range []string{edge.Source, edge.Target} {
		if _, ok := s.nodes[end]; !ok {
			return fmt.Errorf("%w: %w: edge endpoint %q", ErrInvalidArgument, ErrNotFound, end)
		}
	}
	if err := validateOutcomes(edge.Probability); err != nil {
		return err
	}

	key := edge.Key()
	if _, exists := s.edges[key]; exists {
		return fmt.Errorf("%w: edge %q -> %q", ErrDuplicate, edge.Source, edge.Target)
	}

	s.edges[key] = edge
	s.edgeOrder = append(s.edgeOrder, key)
	s.nodes[edge.Source].Neighbors.Add(edge.Target)
	return nil
}

func validateOutcomes(p []Outcome) error {
	for i, o := range p {
		if o.Node == "" {
			return fmt.Errorf("%w: outcome %d has empty node id", ErrInvalidArgument, i)
		}
		if math.IsNaN(o.Weight) || math.IsInf(o.Weight, 0) {
			return fmt.Errorf("%w: outcome %q has non-finite weight", ErrInvalidArgument, o.Node)
		}
	}
	return nil
}

func (s *Store) AddDefaultEdge(src, tgt string, probability ...Outcome) error {
	p := make([]Outcome, len(probability))
	copy(p, probability)
	return s.AddEdge(&Edge{Source: src, Target: tgt, Probability: p})
}

// RemoveEdge deletes the edge and drops tgt from src's neighbor set.
// Probability lists are left alone.
func (s *Store) RemoveEdge(src, tgt string) error {
	for _, end := range []string{src, tgt} {
		if _, ok := s.nodes[end]; !ok {
			return fmt.Errorf("%w: node %q", ErrNotFound, end)
		}
	}
	key := EdgeKey{Source: src, Target: tgt}
	if _, ok := s.edges[key]; !ok {
		return fmt.Errorf("%w: edge %q -> %q", ErrNotFound, src, tgt)
	}
	s.unlink(key)
	return nil
}

// unlink removes an edge known to exist.
func (s *Store) unlink(key EdgeKey) {
	if src, ok := s.nodes[key.Source]; ok {
		src.Neighbors.Remove(key.Target)
	}
	delete(s.edges, key)
	for i, k := range s.edgeOrder {
		if k == key {
			s.edgeOrder = append(s.edgeOrder[:i], s.edgeOrder[i+1:]...)
			break
		}
	}
}

func (s *Store) EdgeCount() int {
	return len(s.edges)
}

// IncomingEdges returns every edge targeting id, ordered by source insertion.
// It probes each node as a candidate source: O(|V|) per call.
func (s *Store) IncomingEdges(id string) ([]*Edge, error) {
	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: node %q", ErrNotFound, id)
	}
	var edges []*Edge
	for _, src := range s.nodeOrder {
		if e, ok := s.edges[EdgeKey{Source: src, Target: id}]; ok {
			edges = append(edges, e)
		}
	}
	return edges, nil
}

// Neighbors returns the live neighbor set of id. It is not copied; change it
// only through AddEdge and RemoveEdge.
func (s *Store) Neighbors(id string) (Set, error) {
	n, err := s.Node(id)
	if err != nil {
		return nil, err
	}
	return n.Neighbors, nil
}

// SetUtilities assigns utilities for the named nodes. Nothing is written if
// any id is unknown.
func (s *Store) SetUtilities(utilities map[string]float64) error {
	for id := range utilities {
		if _, ok := s.nodes[id]; !ok {
			return fmt.Errorf("%w: node %q", ErrNotFound, id)
		}
	}
	for id, u := range utilities {
		s.nodes[id].Utility = u
	}
	return nil
}

func (s *Store) Utility(id string) (float64, error) {
	n, err := s.Node(id)
	if err != nil {
		return 0, err
	}
	return n.Utility, nil
}

func (s *Store) Reward(id string) (float64, error) {
	n, err := s.Node(id)
	if err != nil {
		return 0, err
	}
	return n.Reward, nil
}

func (s *Store) IsTerminal(id string) (bool, error) {
	n, err := s.Node(id)
	if err != nil {
		return false, err
	}
	return n.Terminal, nil
}

// SetReward updates the reward of id.
func (s *Store) SetReward(id string, reward float64) error {
	n, err := s.Node(id)
	if err != nil {
		return err
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return fmt.Errorf("%w: non-finite reward for %q", ErrInvalidArgument, id)
	}
	n.Reward = reward
	return nil
}

// SetTerminal updates the terminal flag of id.
func (s *Store) SetTerminal(id string, terminal bool) error {
	n, err := s.Node(id)
	if err != nil {
		return err
	}
	n.Terminal = terminal
	return nil
}

// ForEachNode calls fn for every node in insertion order. fn may change node
// fields but must not add or remove nodes.
func (s *Store) ForEachNode(fn func(*Node)) {
	for _, id := range s.nodeOrder {
		if n, ok := s.nodes[id]; ok {
			fn(n)
		}
	}
}

// ForEachEdge calls fn for every edge in insertion order. fn may change the
// probability list but must not add or remove edges.
func (s *Store) ForEachEdge(fn func(*Edge)) {
	for _, key := range s.edgeOrder {
		if e, ok := s.edges[key]; ok {
			fn(e)
		}
	}
}

func removeString(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
