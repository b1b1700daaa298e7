package graph

import "fmt"

// Depths returns the shortest hop count from start to every node reachable
// along outgoing edges. Unreachable nodes are absent from the result.
func Depths(g GraphStore, start string) (map[string]int, error) {
	if !g.HasNode(start) {
		return nil, fmt.Errorf("%w: start node %q", ErrNotFound, start)
	}

	depth := map[string]int{start: 0}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		neighbors, err := g.Neighbors(current)
		if err != nil {
			return nil, err
		}
		for _, next := range neighbors.Sorted() {
			if _, seen := depth[next]; seen {
				continue
			}
			depth[next] = depth[current] + 1
			queue = append(queue, next)
		}
	}

	return depth, nil
}

// Reachable returns the set of nodes reachable from start, start included.
func Reachable(g GraphStore, start string) (Set, error) {
	depth, err := Depths(g, start)
	if err != nil {
		return nil, err
	}
	out := make(Set, len(depth))
	for id := range depth {
		out.Add(id)
	}
	return out, nil
}

// Components groups nodes into weakly connected components. Components and
// their members follow node insertion order.
func Components(g GraphStore) [][]string {
	ids := g.NodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	uf := NewUnionFind(len(ids))
	g.ForEachEdge(func(e *Edge) {
		uf.Union(index[e.Source], index[e.Target])
	})

	slot := make(map[int]int)
	var groups [][]string
	for i, id := range ids {
		root := uf.Find(i)
		pos, ok := slot[root]
		if !ok {
			pos = len(groups)
			slot[root] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], id)
	}
	return groups
}

// TopologicalOrder returns the nodes so that every edge points forward.
// It fails with ErrCycle if the graph has a loop, self-loops included.
func TopologicalOrder(g GraphStore) ([]string, error) {
	visited := make(map[string]bool)
	tempMark := make(map[string]bool)
	var postorder []string
	var cycleErr error

	var visit func(id string)
	visit = func(id string) {
		if cycleErr != nil || visited[id] {
			return
		}
		if tempMark[id] {
			cycleErr = fmt.Errorf("%w involving %q", ErrCycle, id)
			return
		}
		tempMark[id] = true

		neighbors, err := g.Neighbors(id)
		if err != nil {
			cycleErr = err
			return
		}
		for _, next := range neighbors.Sorted() {
			visit(next)
		}

		tempMark[id] = false
		visited[id] = true
		postorder = append(postorder, id)
	}

	for _, id := range g.NodeIDs() {
		visit(id)
		if cycleErr != nil {
			return nil, cycleErr
		}
	}

	order := make([]string, len(postorder))
	for i, id := range postorder {
		order[len(postorder)-1-i] = id
	}
	return order, nil
}
