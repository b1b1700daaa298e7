package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/levelgraph/pkg/graph"
)

// world: start -> a -> boss(terminal), start -> trap (dead end), island alone.
func world(t *testing.T) *graph.Store {
	t.Helper()
	g := graph.NewStore()
	require.NoError(t, g.AddDefaultNode("start", graph.WithReward(0)))
	require.NoError(t, g.AddDefaultNode("a"))
	require.NoError(t, g.AddDefaultNode("boss", graph.WithReward(10), graph.WithTerminal(true)))
	require.NoError(t, g.AddDefaultNode("trap", graph.WithReward(-2)))
	require.NoError(t, g.AddDefaultNode("island"))
	require.NoError(t, g.AddDefaultEdge("start", "a"))
	require.NoError(t, g.AddDefaultEdge("a", "boss"))
	require.NoError(t, g.AddDefaultEdge("start", "trap"))
	return g
}

func TestCELEngine(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	rules := []Rule{
		{ID: "deep", Condition: "depth > 1", Severity: SeverityInfo},
		{ID: "hub", Condition: "out_degree >= 2 && 'a' in neighbors", Severity: SeverityInfo},
		{ID: "named", Condition: "id.startsWith('bo')", Severity: SeverityInfo},
	}
	require.NoError(t, engine.Compile(rules))

	matched, err := engine.Evaluate(Facts{ID: "boss", Depth: 2, Reachable: true})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "deep", matched[0].ID)
	assert.Equal(t, "named", matched[1].ID)

	matched, err = engine.Evaluate(Facts{ID: "start", OutDegree: 2, Neighbors: []string{"a", "trap"}})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "hub", matched[0].ID)
}

func TestCELEngine_CompileErrors(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	assert.Error(t, engine.Compile([]Rule{{ID: "x", Condition: "cost > 1", Severity: SeverityInfo}}))
	assert.Error(t, engine.Compile([]Rule{{ID: "x", Condition: "reward >", Severity: SeverityInfo}}))
	assert.Error(t, engine.Compile([]Rule{{ID: "x", Condition: "true", Severity: "fatal"}}))
	assert.Error(t, engine.Compile([]Rule{{Condition: "true", Severity: SeverityInfo}}))
}

func TestCELEngine_NonBoolean(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	err = engine.Compile([]Rule{{ID: "num", Condition: "reward + 1.0", Severity: SeverityError}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want bool")

	_, err = NewLinter("start", []Rule{{ID: "count", Condition: "out_degree", Severity: SeverityError}}, nil)
	assert.Error(t, err)
}

func TestLint_Defaults(t *testing.T) {
	l, err := NewLinter("start", DefaultRules(), nil)
	require.NoError(t, err)

	findings, err := l.Lint(world(t))
	require.NoError(t, err)

	var got []string
	for _, f := range findings {
		got = append(got, f.Rule+":"+f.Node)
	}
	assert.Equal(t, []string{
		"dead-end:trap",
		"unreachable:island",
		"dead-end:island",
		"disconnected:",
	}, got)
	assert.True(t, Fails(findings, SeverityWarning))
	assert.False(t, Fails(findings, SeverityError))
}

func TestStructural(t *testing.T) {
	g := world(t)
	require.NoError(t, g.AddDefaultEdge("boss", "start"))
	require.NoError(t, g.AddDefaultEdge("trap", "island",
		graph.Outcome{Node: "island", Weight: 0.5},
		graph.Outcome{Node: "ghost", Weight: 0.25},
	))

	findings := Structural(g)
	rules := map[string]Finding{}
	for _, f := range findings {
		rules[f.Rule] = f
	}
	assert.Equal(t, "trap", rules["dangling-outcome"].Node)
	assert.Equal(t, SeverityError, rules["dangling-outcome"].Severity)
	assert.Contains(t, rules["unnormalized"].Message, "0.75")
	assert.Equal(t, SeverityInfo, rules["cycle"].Severity)
	assert.NotContains(t, rules, "disconnected")
}

func TestFactsFor(t *testing.T) {
	facts, err := FactsFor(world(t), "start")
	require.NoError(t, err)
	require.Len(t, facts, 5)

	boss := facts[2]
	assert.Equal(t, "boss", boss.ID)
	assert.Equal(t, 2, boss.Depth)
	assert.Equal(t, 1, boss.InDegree)
	assert.True(t, boss.Reachable)

	island := facts[4]
	assert.Equal(t, -1, island.Depth)
	assert.False(t, island.Reachable)

	// No start node: nothing is reachable.
	facts, err = FactsFor(world(t), "missing")
	require.NoError(t, err)
	for _, f := range facts {
		assert.False(t, f.Reachable, f.ID)
	}
}

func TestLoadRules(t *testing.T) {
	src := `
rules:
  - id: low-reward
    condition: reward < 0.5
    message: level pays almost nothing
  - id: deep
    condition: depth > 10
    severity: info
`
	rules, err := LoadRules(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, SeverityWarning, rules[0].Severity)
	assert.Equal(t, SeverityInfo, rules[1].Severity)

	_, err = LoadRules(strings.NewReader("rules:\n  - id: x\n    when: true\n"))
	assert.Error(t, err)

	rules, err = LoadRules(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestSeverity(t *testing.T) {
	assert.True(t, SeverityError.AtLeast(SeverityWarning))
	assert.False(t, SeverityInfo.AtLeast(SeverityWarning))
	assert.Equal(t, "[warning] dead-end: trap: no exits", Finding{Rule: "dead-end", Node: "trap", Severity: SeverityWarning, Message: "no exits"}.String())
}
