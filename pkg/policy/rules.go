// Package policy lints level graphs with CEL rules and structural checks.
package policy

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	}
	return 0
}

// AtLeast reports whether s is as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.rank() >= threshold.rank()
}

// Rule is a user-defined lint rule. Condition is a CEL expression over the
// node facts, e.g. "!terminal && out_degree == 0".
type Rule struct {
	ID        string   `yaml:"id" json:"id"`
	Condition string   `yaml:"condition" json:"condition"`
	Severity  Severity `yaml:"severity" json:"severity"`
	Message   string   `yaml:"message" json:"message"`
}

func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.New("rule without id")
	}
	if r.Condition == "" {
		return fmt.Errorf("rule %s has no condition", r.ID)
	}
	if r.Severity.rank() == 0 {
		return fmt.Errorf("rule %s has unknown severity %q", r.ID, r.Severity)
	}
	return nil
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules decodes a YAML rule file:
//
//	rules:
//	  - id: low-reward
//	    condition: reward < 0.5
//	    severity: info
//	    message: level pays almost nothing
//
// Severity defaults to warning.
func LoadRules(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f ruleFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	for i := range f.Rules {
		if f.Rules[i].Severity == "" {
			f.Rules[i].Severity = SeverityWarning
		}
		if err := f.Rules[i].Validate(); err != nil {
			return nil, err
		}
	}
	return f.Rules, nil
}

// DefaultRules flag levels players can never reach and levels that strand
// them.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "unreachable",
			Condition: "!reachable",
			Severity:  SeverityWarning,
			Message:   "level cannot be reached from the start node",
		},
		{
			ID:        "dead-end",
			Condition: "!terminal && out_degree == 0",
			Severity:  SeverityWarning,
			Message:   "non-terminal level has no exits",
		},
	}
}
