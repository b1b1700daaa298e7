package graph

import "errors"

// Sentinel errors for store operations. Returned errors wrap these with the
// offending identifier; match them with errors.Is.
var (
	// ErrNotFound is returned when a node or edge identifier is not in the store.
	ErrNotFound = errors.New("graph: not found")

	// ErrDuplicate is returned by AddNode/AddEdge when the id or pair already exists.
	ErrDuplicate = errors.New("graph: already exists")

	// ErrInvalidArgument is returned for malformed input: empty ids, nil
	// records, non-finite weights, or edges whose endpoints are not registered.
	ErrInvalidArgument = errors.New("graph: invalid argument")

	// ErrCycle is returned by TopologicalOrder when the graph is not acyclic.
	ErrCycle = errors.New("graph: cycle detected")
)
