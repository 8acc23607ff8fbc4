// Package skills defines pepper skills: named, versioned documents that
// describe an ordered list of typed steps. Skills are plain markdown files
// with a flat key/value frontmatter and one `## <step>` section per step.
// The package parses skill documents, discovers them on disk and derives
// the input schema a caller needs to run them. Execution lives in the
// runner package.
package skills

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// StepType identifies which interpreter handles a step
type StepType string

// Recognized step types. Any other value is treated as unknown and skipped.
const (
	StepTypeShell       StepType = "shell"
	StepTypeRegexScan   StepType = "regex_scan"
	StepTypeGenerate    StepType = "llm_generate"
	StepTypeInteractive StepType = "interactive"
	StepTypeUnknown     StepType = "unknown"
)

// DefaultVersion is assigned to skills whose frontmatter has no version
const DefaultVersion = "0.0.1"

// Skill is a parsed skill document. It is immutable once returned by Parse.
type Skill struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Version     string         `json:"version" yaml:"version"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"` // remaining frontmatter keys
	Steps       []Step         `json:"steps" yaml:"steps"`
}

// Step is a single unit of work inside a skill. Fields holds every key of
// the step's field block (including type) with coerced values.
type Step struct {
	Name   string         `json:"name" yaml:"name"`
	Type   StepType       `json:"type" yaml:"type"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// Known reports whether the step type has an interpreter
func (s Step) Known() bool {
	switch s.Type {
	case StepTypeShell, StepTypeRegexScan, StepTypeGenerate, StepTypeInteractive:
		return true
	}
	return false
}

// StepConfig is the typed view of a step's fields. Exactly one of the
// concrete config types below implements it for each step type.
type StepConfig interface {
	stepType() StepType
}

// ShellConfig configures a shell step
type ShellConfig struct {
	Command      string `mapstructure:"command"`
	Cwd          string `mapstructure:"cwd"`
	IgnoreErrors bool   `mapstructure:"ignore_errors"`
}

// RegexScanConfig configures a regex_scan step
type RegexScanConfig struct {
	File          string `mapstructure:"file"`
	Pattern       string `mapstructure:"pattern"`
	Flags         string `mapstructure:"flags"`
	FailIfMatch   bool   `mapstructure:"fail_if_match"`
	FailIfNoMatch bool   `mapstructure:"fail_if_no_match"`
}

// GenerateConfig configures an llm_generate step
type GenerateConfig struct {
	Prompt     string `mapstructure:"prompt"`
	MockOutput string `mapstructure:"mock_output"`
}

// InteractiveConfig configures an interactive step
type InteractiveConfig struct {
	InputSource string `mapstructure:"input_source"`
}

// UnknownConfig is the config of a step whose type has no interpreter
type UnknownConfig struct {
	Type StepType
}

func (ShellConfig) stepType() StepType       { return StepTypeShell }
func (RegexScanConfig) stepType() StepType   { return StepTypeRegexScan }
func (GenerateConfig) stepType() StepType    { return StepTypeGenerate }
func (InteractiveConfig) stepType() StepType { return StepTypeInteractive }
func (c UnknownConfig) stepType() StepType   { return c.Type }

// Config decodes the step's fields into its typed variant. Values are
// decoded weakly, so `ignore_errors: "true"` and `command: 42` both work.
// Fields not used by the variant are ignored.
func (s Step) Config() (StepConfig, error) {
	var cfg StepConfig
	switch s.Type {
	case StepTypeShell:
		var c ShellConfig
		if err := decodeFields(s.Fields, &c); err != nil {
			return nil, err
		}
		cfg = c
	case StepTypeRegexScan:
		var c RegexScanConfig
		if err := decodeFields(s.Fields, &c); err != nil {
			return nil, err
		}
		cfg = c
	case StepTypeGenerate:
		var c GenerateConfig
		if err := decodeFields(s.Fields, &c); err != nil {
			return nil, err
		}
		cfg = c
	case StepTypeInteractive:
		var c InteractiveConfig
		if err := decodeFields(s.Fields, &c); err != nil {
			return nil, err
		}
		cfg = c
	default:
		cfg = UnknownConfig{Type: s.Type}
	}
	return cfg, nil
}

// Has reports whether the field block set key at all
func (s Step) Has(key string) bool {
	_, ok := s.Fields[key]
	return ok
}

func decodeFields(fields map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       scalarToString,
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create field decoder")
	}
	if err := decoder.Decode(fields); err != nil {
		return errors.Wrap(err, "failed to decode step fields")
	}
	return nil
}

// scalarToString renders coerced scalars into string fields as they were
// written, so `mock_output: true` stays "true" rather than "1"
func scalarToString(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int64, reflect.Float64:
		return FormatScalar(data), nil
	}
	return data, nil
}
