package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/DrSkyle/levelgraph/pkg/graph"
)

// weightTolerance bounds how far a distribution may sum from 1.
const weightTolerance = 1e-9

// Facts are the per-node values rules are evaluated against.
type Facts struct {
	ID        string
	Reward    float64
	Utility   float64
	Terminal  bool
	Depth     int // -1 when unreachable
	Reachable bool
	OutDegree int
	InDegree  int
	Neighbors []string
}

// Vars returns facts as CEL activation variables.
func (f Facts) Vars() map[string]any {
	neighbors := f.Neighbors
	if neighbors == nil {
		neighbors = []string{}
	}
	return map[string]any{
		"id":         f.ID,
		"reward":     f.Reward,
		"utility":    f.Utility,
		"terminal":   f.Terminal,
		"depth":      int64(f.Depth),
		"reachable":  f.Reachable,
		"out_degree": int64(f.OutDegree),
		"in_degree":  int64(f.InDegree),
		"neighbors":  neighbors,
	}
}

// Finding is one lint result. Node is empty for graph-wide findings.
type Finding struct {
	Rule     string   `json:"rule" yaml:"rule"`
	Node     string   `json:"node,omitempty" yaml:"node,omitempty"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	if f.Node == "" {
		return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Rule, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", f.Severity, f.Rule, f.Node, f.Message)
}

// Linter runs rules and structural checks over a graph.
type Linter struct {
	engine *CELEngine
	start  string
	log    *slog.Logger
}

// NewLinter compiles rules. Reachability and depth are measured from start.
func NewLinter(start string, rules []Rule, log *slog.Logger) (*Linter, error) {
	engine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	if err := engine.Compile(rules); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Linter{engine: engine, start: start, log: log}, nil
}

// FactsFor collects the facts of every node in insertion order.
func FactsFor(g graph.GraphStore, start string) ([]Facts, error) {
	depth := map[string]int{}
	if g.HasNode(start) {
		var err error
		if depth, err = graph.Depths(g, start); err != nil {
			return nil, err
		}
	}

	facts := make([]Facts, 0, g.NodeCount())
	for _, id := range g.NodeIDs() {
		n, err := g.Node(id)
		if err != nil {
			return nil, err
		}
		incoming, err := g.IncomingEdges(id)
		if err != nil {
			return nil, err
		}
		d, reachable := depth[id]
		if !reachable {
			d = -1
		}
		facts = append(facts, Facts{
			ID:        id,
			Reward:    n.Reward,
			Utility:   n.Utility,
			Terminal:  n.Terminal,
			Depth:     d,
			Reachable: reachable,
			OutDegree: len(n.Neighbors),
			InDegree:  len(incoming),
			Neighbors: n.Neighbors.Sorted(),
		})
	}
	return facts, nil
}

// Lint returns rule findings in node order followed by structural findings.
func (l *Linter) Lint(g graph.GraphStore) ([]Finding, error) {
	facts, err := FactsFor(g, l.start)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, f := range facts {
		matched, err := l.engine.Evaluate(f)
		if err != nil {
			l.log.Error("Rule evaluation failed", "node", f.ID, "error", err)
		}
		for _, r := range matched {
			findings = append(findings, Finding{Rule: r.ID, Node: f.ID, Severity: r.Severity, Message: r.Message})
		}
	}
	return append(findings, Structural(g)...), nil
}

// Structural checks the graph as a whole: outcomes naming missing nodes,
// distributions that do not sum to 1, cycles and disconnected parts.
func Structural(g graph.GraphStore) []Finding {
	var findings []Finding
	g.ForEachEdge(func(e *graph.Edge) {
		for _, o := range e.Probability {
			if !g.HasNode(o.Node) {
				findings = append(findings, Finding{
					Rule:     "dangling-outcome",
					Node:     e.Source,
					Severity: SeverityError,
					Message:  fmt.Sprintf("edge to %q has an outcome naming missing node %q", e.Target, o.Node),
				})
			}
		}
		if total := e.TotalWeight(); len(e.Probability) > 0 && math.Abs(total-1) > weightTolerance {
			findings = append(findings, Finding{
				Rule:     "unnormalized",
				Node:     e.Source,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("edge to %q has outcome weights summing to %g", e.Target, total),
			})
		}
	})

	if _, err := graph.TopologicalOrder(g); errors.Is(err, graph.ErrCycle) {
		findings = append(findings, Finding{
			Rule:     "cycle",
			Severity: SeverityInfo,
			Message:  err.Error(),
		})
	}

	if groups := graph.Components(g); len(groups) > 1 {
		findings = append(findings, Finding{
			Rule:     "disconnected",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("graph has %d disconnected parts", len(groups)),
		})
	}
	return findings
}

// Fails reports whether any finding is at least threshold severe.
func Fails(findings []Finding, threshold Severity) bool {
	for _, f := range findings {
		if f.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}
