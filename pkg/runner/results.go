package runner

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Result is the value a completed step records in the execution context.
// Lookup exposes its fields to template resolution.
type Result interface {
	Lookup(field string) (any, bool)
}

// ShellResult is recorded by shell steps
type ShellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Error    string `json:"error,omitempty"`
}

// Lookup implements Result
func (r ShellResult) Lookup(field string) (any, bool) {
	switch field {
	case "stdout":
		return r.Stdout, true
	case "stderr":
		return r.Stderr, true
	case "exitCode":
		return r.ExitCode, true
	case "error":
		return r.Error, r.Error != ""
	}
	return nil, false
}

// ScanStatusClean is the status of a scan that raised no violation
const ScanStatusClean = "clean"

// ScanResult is recorded by regex_scan steps
type ScanResult struct {
	Scanned []string `json:"scanned"`
	Matched []string `json:"matched"`
	Status  string   `json:"status"`
}

// Lookup implements Result
func (r ScanResult) Lookup(field string) (any, bool) {
	switch field {
	case "scanned":
		return r.Scanned, true
	case "matched":
		return r.Matched, true
	case "status":
		return r.Status, true
	}
	return nil, false
}

// GenerateResult is recorded by llm_generate steps
type GenerateResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Lookup implements Result
func (r GenerateResult) Lookup(field string) (any, bool) {
	switch field {
	case "content":
		return r.Content, true
	case "model":
		return r.Model, true
	}
	return nil, false
}

// InteractiveResult is recorded by a confirmed interactive step
type InteractiveResult struct {
	Confirmed bool `json:"confirmed"`
}

// Lookup implements Result
func (r InteractiveResult) Lookup(field string) (any, bool) {
	if field == "confirmed" {
		return r.Confirmed, true
	}
	return nil, false
}

// SkipReasonUnknownType marks steps whose type has no interpreter
const SkipReasonUnknownType = "unknown_type"

// SkippedResult is recorded for steps that were not executed
type SkippedResult struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
}

// Lookup implements Result
func (r SkippedResult) Lookup(field string) (any, bool) {
	switch field {
	case "skipped":
		return r.Skipped, true
	case "reason":
		return r.Reason, true
	}
	return nil, false
}

// RawResult holds a result decoded from JSON, e.g. a saved run
type RawResult map[string]any

// Lookup implements Result
func (r RawResult) Lookup(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// StepResults maps step names to results and remembers insertion order
type StepResults struct {
	order   []string
	results map[string]Result
}

// NewStepResults returns an empty result map
func NewStepResults() *StepResults {
	return &StepResults{results: map[string]Result{}}
}

// Set records the result of a step. Re-setting a name keeps its position.
func (s *StepResults) Set(name string, result Result) {
	if _, exists := s.results[name]; !exists {
		s.order = append(s.order, name)
	}
	s.results[name] = result
}

// Get returns the result recorded for a step
func (s *StepResults) Get(name string) (Result, bool) {
	r, ok := s.results[name]
	return r, ok
}

// Names returns step names in the order they completed
func (s *StepResults) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of recorded results
func (s *StepResults) Len() int {
	return len(s.order)
}

// Last returns the most recently recorded result
func (s *StepResults) Last() (string, Result, bool) {
	if len(s.order) == 0 {
		return "", nil, false
	}
	name := s.order[len(s.order)-1]
	return name, s.results[name], true
}

// MarshalJSON writes results as an object in completion order
func (s *StepResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.results[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores results as RawResult values, keeping key order
func (s *StepResults) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	s.order = nil
	s.results = map[string]Result{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var raw RawResult
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		s.Set(name, raw)
	}
	_, err := dec.Token()
	return err
}

// MarshalYAML renders results as a mapping in completion order
func (s *StepResults) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range s.order {
		data, err := json.Marshal(s.results[name])
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		var value yaml.Node
		if err := value.Encode(fields); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&value,
		)
	}
	return node, nil
}
