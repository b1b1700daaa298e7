// Package solver computes level utilities by value iteration over the
// Markov decision process a level graph describes.
package solver

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/DrSkyle/levelgraph/pkg/graph"
	"github.com/DrSkyle/levelgraph/pkg/telemetry"
)

// Options tunes value iteration.
type Options struct {
	Discount      float64 `mapstructure:"discount" yaml:"discount"`
	Epsilon       float64 `mapstructure:"epsilon" yaml:"epsilon"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations"`
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		Discount:      0.95,
		Epsilon:       1e-6,
		MaxIterations: 1000,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if math.IsNaN(o.Discount) || o.Discount < 0 || o.Discount > 1 {
		return fmt.Errorf("%w: discount %v must be in [0, 1]", graph.ErrInvalidArgument, o.Discount)
	}
	if !(o.Epsilon > 0) {
		return fmt.Errorf("%w: epsilon %v must be positive", graph.ErrInvalidArgument, o.Epsilon)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations %d must be positive", graph.ErrInvalidArgument, o.MaxIterations)
	}
	return nil
}

// Result is the outcome of a solve.
type Result struct {
	Utilities map[string]float64
	// Policy maps every non-terminal node with outgoing edges to the target
	// of its best edge.
	Policy     map[string]string
	Iterations int
	// Delta is the largest utility change of the last sweep.
	Delta     float64
	Converged bool
}

type Solver struct {
	opts Options
}

func New(opts Options) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Solver{opts: opts}, nil
}

// Solve runs value iteration and returns the utilities. The store is not
// modified; see Apply.
//
// Terminal nodes and nodes without outgoing edges are worth their reward.
// Every other node is worth its reward plus the discounted value of its best
// edge, where an edge is worth the weighted utilities of its outcomes, or the
// utility of its target when it has none.
func (s *Solver) Solve(ctx context.Context, g graph.GraphStore) (*Result, error) {
	_, span := telemetry.Tracer("levelgraph/solver").Start(ctx, "solver.Solve")
	defer span.End()

	out := make(map[string][]*graph.Edge)
	var dangling error
	g.ForEachEdge(func(e *graph.Edge) {
		out[e.Source] = append(out[e.Source], e)
		for _, o := range e.Probability {
			if dangling == nil && !g.HasNode(o.Node) {
				dangling = fmt.Errorf("%w: outcome %q of edge %q -> %q", graph.ErrNotFound, o.Node, e.Source, e.Target)
			}
		}
	})
	if dangling != nil {
		span.RecordError(dangling)
		return nil, dangling
	}

	ids := g.NodeIDs()
	reward := make(map[string]float64, len(ids))
	fixed := make(map[string]bool, len(ids))
	for _, id := range ids {
		n, err := g.Node(id)
		if err != nil {
			return nil, err
		}
		reward[id] = n.Reward
		fixed[id] = n.Terminal || len(out[id]) == 0
	}

	res := &Result{Utilities: make(map[string]float64, len(ids))}
	u := res.Utilities
	for _, id := range ids {
		if fixed[id] {
			u[id] = reward[id]
		}
	}

	for res.Iterations < s.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := make(map[string]float64, len(ids))
		delta := 0.0
		for _, id := range ids {
			v := reward[id]
			if !fixed[id] {
				_, best := bestEdge(out[id], u)
				v += s.opts.Discount * best
			}
			next[id] = v
			delta = math.Max(delta, math.Abs(v-u[id]))
		}

		u = next
		res.Iterations++
		res.Delta = delta
		if delta < s.opts.Epsilon {
			res.Converged = true
			break
		}
	}
	res.Utilities = u

	res.Policy = make(map[string]string)
	for _, id := range ids {
		if fixed[id] {
			continue
		}
		if e, _ := bestEdge(out[id], u); e != nil {
			res.Policy[id] = e.Target
		}
	}

	span.SetAttributes(
		attribute.Int("solver.iterations", res.Iterations),
		attribute.Bool("solver.converged", res.Converged),
		attribute.Float64("solver.delta", res.Delta),
	)
	return res, nil
}

// bestEdge returns the highest valued edge. Ties keep the earlier edge.
func bestEdge(edges []*graph.Edge, u map[string]float64) (*graph.Edge, float64) {
	var (
		best  *graph.Edge
		value float64
	)
	for _, e := range edges {
		q := edgeValue(e, u)
		if best == nil || q > value {
			best, value = e, q
		}
	}
	return best, value
}

func edgeValue(e *graph.Edge, u map[string]float64) float64 {
	if len(e.Probability) == 0 {
		return u[e.Target]
	}
	q := 0.0
	for _, o := range e.Probability {
		q += o.Weight * u[o.Node]
	}
	return q
}

// Apply writes the result's utilities into g.
func Apply(g graph.GraphStore, res *Result) error {
	return g.SetUtilities(res.Utilities)
}
