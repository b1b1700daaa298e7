package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepths_ShortestPath(t *testing.T) {
	// start -> a -> b -> c, plus a shortcut start -> c.
	s := newStore(t, "start", "a", "b", "c", "island")
	require.NoError(t, s.AddDefaultEdge("start", "a"))
	require.NoError(t, s.AddDefaultEdge("a", "b"))
	require.NoError(t, s.AddDefaultEdge("b", "c"))
	require.NoError(t, s.AddDefaultEdge("start", "c"))

	depth, err := Depths(s, "start")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"start": 0, "a": 1, "b": 2, "c": 1}, depth)

	_, ok := depth["island"]
	assert.False(t, ok)
}

func TestDepths_UnknownStart(t *testing.T) {
	s := newStore(t, "a")
	_, err := Depths(s, "start")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReachable(t *testing.T) {
	s := newStore(t, "start", "a", "b")
	require.NoError(t, s.AddDefaultEdge("start", "a"))
	require.NoError(t, s.AddDefaultEdge("b", "start"))

	r, err := Reachable(s, "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "start"}, r.Sorted())
}

func TestComponents(t *testing.T) {
	s := newStore(t, "a", "b", "c", "d", "e")
	require.NoError(t, s.AddDefaultEdge("a", "b"))
	require.NoError(t, s.AddDefaultEdge("d", "c"))
	require.NoError(t, s.AddDefaultEdge("c", "a"))

	groups := Components(s)
	assert.Equal(t, [][]string{{"a", "b", "c", "d"}, {"e"}}, groups)
}

func TestTopologicalOrder(t *testing.T) {
	s := newStore(t, "boss", "mid", "start")
	require.NoError(t, s.AddDefaultEdge("start", "mid"))
	require.NoError(t, s.AddDefaultEdge("mid", "boss"))

	order, err := TopologicalOrder(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "mid", "boss"}, order)
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	s := newStore(t, "a", "b")
	require.NoError(t, s.AddDefaultEdge("a", "b"))
	require.NoError(t, s.AddDefaultEdge("b", "a"))

	_, err := TopologicalOrder(s)
	assert.ErrorIs(t, err, ErrCycle)

	loop := newStore(t, "x")
	require.NoError(t, loop.AddDefaultEdge("x", "x"))
	_, err = TopologicalOrder(loop)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(4)
	uf.Union(0, 1)
	uf.Union(2, 3)
	assert.Equal(t, uf.Find(0), uf.Find(1))
	assert.NotEqual(t, uf.Find(1), uf.Find(2))
	uf.Union(1, 3)
	assert.Equal(t, uf.Find(0), uf.Find(2))
	assert.Equal(t, -1, uf.Find(9))
	uf.Union(0, 9)
	assert.Equal(t, uf.Find(0), uf.Find(3))
}
