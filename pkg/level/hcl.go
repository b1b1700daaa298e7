package level

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/DrSkyle/levelgraph/pkg/graph"
)

// DefaultReward is the reward of a level that does not set one, and the value
// of the default_reward variable in HCL files.
const DefaultReward = 1.0

// hclGraphFile is the top-level structure of an HCL graph file.
type hclGraphFile struct {
	Scale  *float64    `hcl:"scale,optional"`
	Levels []*hclLevel `hcl:"level,block"`
}

type hclLevel struct {
	ID       string     `hcl:"id,label"`
	Reward   *float64   `hcl:"reward,optional"`
	Terminal bool       `hcl:"terminal,optional"`
	X        *float64   `hcl:"x,optional"`
	Y        *float64   `hcl:"y,optional"`
	Next     []string   `hcl:"next,optional"`
	Links    []*hclLink `hcl:"link,block"`
}

type hclLink struct {
	Target   string        `hcl:"target,label"`
	Outcomes []*hclOutcome `hcl:"outcome,block"`
}

type hclOutcome struct {
	Node   string  `hcl:"node,label"`
	Weight float64 `hcl:"weight"`
}

// EvalContext returns the variables available to HCL graph expressions.
func EvalContext(start string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"default_reward": cty.NumberFloatVal(DefaultReward),
			"start":          cty.StringVal(start),
		},
	}
}

// DecodeHCL builds a workspace from an HCL graph file. Levels are created in
// file order, then the start node if the file does not declare it, then the
// edges. `next` entries become edges with empty distributions; `link` blocks
// carry their outcomes.
func DecodeHCL(filename string, src []byte, opts Options) (*Workspace, error) {
	opts = opts.withDefaults()

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclGraphFile
	if diags := gohcl.DecodeBody(f.Body, EvalContext(opts.Start), &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	ws := NewWorkspace(opts.Start)
	if parsed.Scale != nil {
		ws.Scale = *parsed.Scale
	}

	for _, lv := range parsed.Levels {
		if err := ValidateLevelID(lv.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		reward := DefaultReward
		if lv.Reward != nil {
			reward = *lv.Reward
		}
		if err := ws.Store.AddDefaultNode(lv.ID, graph.WithReward(reward), graph.WithTerminal(lv.Terminal)); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		if lv.X != nil || lv.Y != nil {
			var p Position
			if lv.X != nil {
				p.X = *lv.X
			}
			if lv.Y != nil {
				p.Y = *lv.Y
			}
			ws.Positions[lv.ID] = p
		} else if lv.ID == opts.Start {
			ws.Positions[lv.ID] = StartPosition
		} else {
			ws.Positions[lv.ID] = ws.nextPosition()
		}
	}

	if !ws.Store.HasNode(opts.Start) {
		if err := ws.Store.AddDefaultNode(opts.Start, graph.WithReward(0)); err != nil {
			return nil, err
		}
		ws.Positions[opts.Start] = StartPosition
	}

	for _, lv := range parsed.Levels {
		for _, next := range lv.Next {
			if err := ws.Store.AddDefaultEdge(lv.ID, next); err != nil {
				return nil, fmt.Errorf("%s: level %q: %w", filename, lv.ID, err)
			}
		}
		for _, link := range lv.Links {
			outcomes := make([]graph.Outcome, 0, len(link.Outcomes))
			for _, o := range link.Outcomes {
				outcomes = append(outcomes, graph.Outcome{Node: o.Node, Weight: o.Weight})
			}
			if err := ws.Store.AddDefaultEdge(lv.ID, link.Target, outcomes...); err != nil {
				return nil, fmt.Errorf("%s: level %q: %w", filename, lv.ID, err)
			}
		}
	}
	return ws, nil
}
