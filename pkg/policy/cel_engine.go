package policy

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELEngine compiles lint rules and evaluates them against node facts.
type CELEngine struct {
	env      *cel.Env
	rules    []Rule
	programs []cel.Program
}

// NewCELEngine initializes the CEL environment with the node fact variables.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("reward", cel.DoubleType),
		cel.Variable("utility", cel.DoubleType),
		cel.Variable("terminal", cel.BoolType),
		cel.Variable("depth", cel.IntType),
		cel.Variable("reachable", cel.BoolType),
		cel.Variable("out_degree", cel.IntType),
		cel.Variable("in_degree", cel.IntType),
		cel.Variable("neighbors", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &CELEngine{env: env}, nil
}

// Compile adds rules to the engine. Rules keep their order.
func (e *CELEngine) Compile(rules []Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return fmt.Errorf("rule %s condition yields %s, want bool", r.ID, ast.OutputType())
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}

		e.rules = append(e.rules, r)
		e.programs = append(e.programs, prg)
	}
	return nil
}

// Evaluate returns the rules whose condition holds for facts. A rule that
// fails to evaluate, or yields a non-boolean, is reported in the error and
// skipped.
func (e *CELEngine) Evaluate(facts Facts) ([]Rule, error) {
	vars := facts.Vars()

	var (
		matched []Rule
		errs    []error
	)
	for i, prg := range e.programs {
		out, _, err := prg.Eval(vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", e.rules[i].ID, err))
			continue
		}
		match, ok := out.Value().(bool)
		if !ok {
			errs = append(errs, fmt.Errorf("rule %s: condition yields %s, want bool", e.rules[i].ID, out.Type().TypeName()))
			continue
		}
		if match {
			matched = append(matched, e.rules[i])
		}
	}
	return matched, errors.Join(errs...)
}
