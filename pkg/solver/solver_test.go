package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/levelgraph/pkg/graph"
)

func mustSolver(t *testing.T, opts Options) *Solver {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestSolve_Chain(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddDefaultNode("start", graph.WithReward(0)))
	require.NoError(t, g.AddDefaultNode("a", graph.WithReward(1)))
	require.NoError(t, g.AddDefaultNode("boss", graph.WithReward(10), graph.WithTerminal(true)))
	require.NoError(t, g.AddDefaultEdge("start", "a"))
	require.NoError(t, g.AddDefaultEdge("a", "boss"))
	// Terminal nodes ignore their outgoing edges.
	require.NoError(t, g.AddDefaultEdge("boss", "start"))

	s := mustSolver(t, Options{Discount: 0.5, Epsilon: 1e-9, MaxIterations: 100})
	res, err := s.Solve(context.Background(), g)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.InDelta(t, 10.0, res.Utilities["boss"], 1e-9)
	assert.InDelta(t, 6.0, res.Utilities["a"], 1e-9)
	assert.InDelta(t, 3.0, res.Utilities["start"], 1e-9)
	assert.Equal(t, map[string]string{"start": "a", "a": "boss"}, res.Policy)

	require.NoError(t, Apply(g, res))
	u, err := g.Utility("a")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, u, 1e-9)
}

func TestSolve_Stochastic(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddDefaultNode("start", graph.WithReward(0)))
	require.NoError(t, g.AddDefaultNode("gate", graph.WithReward(0)))
	require.NoError(t, g.AddDefaultNode("win", graph.WithReward(10), graph.WithTerminal(true)))
	require.NoError(t, g.AddDefaultNode("lose", graph.WithReward(-10), graph.WithTerminal(true)))
	require.NoError(t, g.AddDefaultEdge("start", "gate",
		graph.Outcome{Node: "win", Weight: 0.8},
		graph.Outcome{Node: "lose", Weight: 0.2},
	))
	require.NoError(t, g.AddDefaultEdge("start", "lose"))

	s := mustSolver(t, Options{Discount: 1, Epsilon: 1e-9, MaxIterations: 10})
	res, err := s.Solve(context.Background(), g)
	require.NoError(t, err)

	assert.InDelta(t, 6.0, res.Utilities["start"], 1e-9)
	assert.Equal(t, "gate", res.Policy["start"])
	// gate has no outgoing edges.
	assert.InDelta(t, 0.0, res.Utilities["gate"], 1e-9)
}

func TestSolve_TieKeepsFirstEdge(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddDefaultNode("start", graph.WithReward(0)))
	require.NoError(t, g.AddDefaultNode("right", graph.WithReward(5)))
	require.NoError(t, g.AddDefaultNode("left", graph.WithReward(5)))
	require.NoError(t, g.AddDefaultEdge("start", "right"))
	require.NoError(t, g.AddDefaultEdge("start", "left"))

	res, err := mustSolver(t, DefaultOptions()).Solve(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, "right", res.Policy["start"])
}

func TestSolve_Cycle(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddDefaultNode("a"))
	require.NoError(t, g.AddDefaultNode("b"))
	require.NoError(t, g.AddDefaultEdge("a", "b"))
	require.NoError(t, g.AddDefaultEdge("b", "a"))

	res, err := mustSolver(t, Options{Discount: 0.9, Epsilon: 1e-10, MaxIterations: 1000}).Solve(context.Background(), g)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InDelta(t, 10.0, res.Utilities["a"], 1e-6)

	res, err = mustSolver(t, Options{Discount: 0.9, Epsilon: 1e-10, MaxIterations: 3}).Solve(context.Background(), g)
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 3, res.Iterations)
}

func TestSolve_DanglingOutcome(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddDefaultNode("a"))
	require.NoError(t, g.AddDefaultNode("b"))
	require.NoError(t, g.AddDefaultEdge("a", "b", graph.Outcome{Node: "ghost", Weight: 1}))

	_, err := mustSolver(t, DefaultOptions()).Solve(context.Background(), g)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestSolve_Canceled(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddDefaultNode("a"))
	require.NoError(t, g.AddDefaultNode("b"))
	require.NoError(t, g.AddDefaultEdge("a", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mustSolver(t, DefaultOptions()).Solve(ctx, g)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolve_EmptyGraph(t *testing.T) {
	res, err := mustSolver(t, DefaultOptions()).Solve(context.Background(), graph.NewStore())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Empty(t, res.Utilities)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	for _, o := range []Options{
		{Discount: -0.1, Epsilon: 1, MaxIterations: 1},
		{Discount: 1.5, Epsilon: 1, MaxIterations: 1},
		{Discount: 0.5, Epsilon: 0, MaxIterations: 1},
		{Discount: 0.5, Epsilon: 1, MaxIterations: 0},
	} {
		_, err := New(o)
		assert.ErrorIs(t, err, graph.ErrInvalidArgument, "%+v", o)
	}
}
