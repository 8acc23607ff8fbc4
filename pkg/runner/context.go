package runner

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/chili-ocx/pepper/pkg/skills"
)

// ExecutionContext is the mutable state of a single run. It is created per
// run, mutated only by the run loop and returned to the caller.
type ExecutionContext struct {
	RunID    string         `json:"runId" yaml:"runId"`
	Skill    string         `json:"skill" yaml:"skill"`
	Inputs   map[string]any `json:"inputs" yaml:"inputs"`
	Steps    *StepResults   `json:"steps" yaml:"steps"`
	Halted   bool           `json:"halted" yaml:"halted"`
	Proposal string         `json:"proposal,omitempty" yaml:"proposal,omitempty"`
}

// NewExecutionContext creates the context for a new run. Inputs are copied
// so the caller's map is never mutated.
func NewExecutionContext(skill string, inputs map[string]any) *ExecutionContext {
	copied := make(map[string]any, len(inputs))
	for k, v := range inputs {
		copied[k] = v
	}
	return &ExecutionContext{
		RunID:  uuid.NewString(),
		Skill:  skill,
		Inputs: copied,
		Steps:  NewStepResults(),
	}
}

// Resolve substitutes every `${path || default}` reference in template.
// It never fails: an undefined or empty value falls back to the default,
// or to the empty string when there is none.
func (c *ExecutionContext) Resolve(template string) string {
	return skills.ExpandTemplate(template, c.resolveReference)
}

func (c *ExecutionContext) resolveReference(ref skills.Reference) string {
	var rendered string
	if value, ok := c.Lookup(ref.Path); ok {
		rendered = renderValue(value)
	}
	if rendered == "" && ref.HasDefault {
		return ref.Default
	}
	return rendered
}

// Lookup walks a dot-separated path from the context root. Roots are
// inputs, steps, halted, proposal, runId and skill.
func (c *ExecutionContext) Lookup(path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	var cur any
	switch path[0] {
	case "inputs":
		cur = c.Inputs
	case "steps":
		cur = c.Steps
	case "halted":
		cur = c.Halted
	case "proposal":
		cur = c.Proposal
	case "runId":
		cur = c.RunID
	case "skill":
		cur = c.Skill
	default:
		return nil, false
	}

	for _, key := range path[1:] {
		next, ok := descend(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

func descend(cur any, key string) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		next, ok := v[key]
		return next, ok
	case *StepResults:
		if v == nil {
			return nil, false
		}
		result, ok := v.Get(key)
		return result, ok
	case Result:
		return v.Lookup(key)
	case []string:
		if key == "length" {
			return len(v), true
		}
		if i, ok := index(key, len(v)); ok {
			return v[i], true
		}
	case []any:
		if key == "length" {
			return len(v), true
		}
		if i, ok := index(key, len(v)); ok {
			return v[i], true
		}
	}
	return nil, false
}

func index(key string, n int) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// renderValue turns a looked-up value into template text. Scalars use
// their plain form and composite values are rendered as JSON.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return skills.FormatScalar(val)
	case json.Number:
		return val.String()
	case Result, []string, []any, map[string]any, *StepResults:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return skills.FormatScalar(val)
	}
}
