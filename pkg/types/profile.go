package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rule is an atomic predicate over one file field, written in profile
// documents as a three-element sequence: [field, operator, value].
type Rule struct {
	Field    string
	Operator string
	// Value is a string, a number, or a list of strings depending on
	// the operator
	Value interface{}
}

// UnmarshalYAML decodes the [field, operator, value] triple form.
// JSON profiles decode through the same path since yaml.v3 parses JSON.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 3 {
		return fmt.Errorf("rule must be a [field, operator, value] triple")
	}
	if err := node.Content[0].Decode(&r.Field); err != nil {
		return fmt.Errorf("rule field: %w", err)
	}
	if err := node.Content[1].Decode(&r.Operator); err != nil {
		return fmt.Errorf("rule operator: %w", err)
	}
	if err := node.Content[2].Decode(&r.Value); err != nil {
		return fmt.Errorf("rule value: %w", err)
	}
	return nil
}

// MarshalYAML renders the rule back into its triple form
func (r Rule) MarshalYAML() (interface{}, error) {
	return []interface{}{r.Field, r.Operator, r.Value}, nil
}

// RuleSet matches a file iff every rule in it matches (AND)
type RuleSet []Rule

// RuleGroup matches a file iff any of its sets matches (OR)
type RuleGroup []RuleSet

// Always lists explicit relative paths that bypass rule evaluation.
// Exclude outranks include.
type Always struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// ExternalSource pulls an additional local tree into the scan, mounted
// under Destination in the output
type ExternalSource struct {
	Source      string    `yaml:"source"`
	Destination string    `yaml:"destination,omitempty"`
	Rules       RuleGroup `yaml:"rules,omitempty"`
}

// TransformConfig binds a named transformer to a set of file patterns
type TransformConfig struct {
	Files       []string `yaml:"files"`
	Transformer string   `yaml:"transformer"`
}

// Profile describes which files to select and how to transform them.
// Profiles may extend a base profile; after resolution Extends is empty.
type Profile struct {
	Name               string            `yaml:"name,omitempty"`
	Extends            string            `yaml:"extends,omitempty"`
	Rules              RuleGroup         `yaml:"rules,omitempty"`
	GlobalExcludeRules RuleGroup         `yaml:"globalExcludeRules,omitempty"`
	Always             Always            `yaml:"always,omitempty"`
	External           []ExternalSource  `yaml:"external,omitempty"`
	Transforms         []TransformConfig `yaml:"transforms,omitempty"`
}
