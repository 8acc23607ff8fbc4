package runner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewExecutionContext(t *testing.T) {
	inputs := map[string]any{"x": "v"}
	ec := NewExecutionContext("demo", inputs)

	assert.NotEmpty(t, ec.RunID)
	assert.Equal(t, "demo", ec.Skill)
	assert.Equal(t, 0, ec.Steps.Len())
	assert.False(t, ec.Halted)

	ec.Inputs["y"] = "w"
	assert.NotContains(t, inputs, "y")

	other := NewExecutionContext("demo", nil)
	assert.NotEqual(t, ec.RunID, other.RunID)
	assert.NotNil(t, other.Inputs)
}

func TestResolve(t *testing.T) {
	ec := NewExecutionContext("demo", map[string]any{
		"x":     "v",
		"empty": "",
		"count": int64(3),
		"ratio": 1.5,
		"off":   false,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"owner": "ops"},
	})
	ec.Steps.Set("build", ShellResult{Stdout: "hi", ExitCode: 0})
	ec.Steps.Set("scan", ScanResult{Scanned: []string{"a.go", "b.go"}, Matched: []string{}, Status: ScanStatusClean})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{name: "input", template: "${inputs.x}", expected: "v"},
		{name: "embedded", template: "echo ${inputs.x}!", expected: "echo v!"},
		{name: "default for missing path", template: `${missing.path || "fallback"}`, expected: "fallback"},
		{name: "missing without default", template: "${missing.path}", expected: ""},
		{name: "missing input", template: "${inputs.nope}", expected: ""},
		{name: "default for empty string", template: "${inputs.empty || 'dflt'}", expected: "dflt"},
		{name: "default ignored when present", template: "${inputs.x || other}", expected: "v"},
		{name: "integer", template: "${inputs.count}", expected: "3"},
		{name: "float", template: "${inputs.ratio}", expected: "1.5"},
		{name: "false is not empty", template: "${inputs.off || true}", expected: "false"},
		{name: "step field", template: "${steps.build.stdout}", expected: "hi"},
		{name: "zero exit code", template: "${steps.build.exitCode}", expected: "0"},
		{name: "empty stderr falls back", template: "${steps.build.stderr || none}", expected: "none"},
		{name: "unset error is undefined", template: "${steps.build.error || ok}", expected: "ok"},
		{name: "slice index", template: "${steps.scan.scanned.1}", expected: "b.go"},
		{name: "slice length", template: "${steps.scan.scanned.length}", expected: "2"},
		{name: "index out of range", template: "${steps.scan.scanned.5 || none}", expected: "none"},
		{name: "slice as json", template: "${steps.scan.scanned}", expected: `["a.go","b.go"]`},
		{name: "result as json", template: "${steps.build}", expected: `{"stdout":"hi","stderr":"","exitCode":0}`},
		{name: "nested input map", template: "${inputs.meta.owner}", expected: "ops"},
		{name: "input slice index", template: "${inputs.tags.0}", expected: "a"},
		{name: "descend into scalar", template: "${inputs.x.y || d}", expected: "d"},
		{name: "halted", template: "${halted}", expected: "false"},
		{name: "skill", template: "${skill}", expected: "demo"},
		{name: "unknown root", template: "${env.HOME}", expected: ""},
		{name: "no references", template: "plain text $HOME", expected: "plain text $HOME"},
		{name: "empty expression path", template: "${ || x}", expected: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ec.Resolve(tt.template))
		})
	}
}

func TestResolveRunID(t *testing.T) {
	ec := NewExecutionContext("demo", nil)
	assert.Equal(t, ec.RunID, ec.Resolve("${runId}"))
}

func TestStepResultsOrder(t *testing.T) {
	results := NewStepResults()
	results.Set("zeta", ShellResult{Stdout: "1"})
	results.Set("alpha", GenerateResult{Content: "msg", Model: GenerateModel})
	results.Set("zeta", ShellResult{Stdout: "2"})

	assert.Equal(t, []string{"zeta", "alpha"}, results.Names())
	assert.Equal(t, 2, results.Len())

	name, last, ok := results.Last()
	require.True(t, ok)
	assert.Equal(t, "alpha", name)
	assert.Equal(t, GenerateResult{Content: "msg", Model: GenerateModel}, last)

	got, ok := results.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, ShellResult{Stdout: "2"}, got)

	_, _, ok = NewStepResults().Last()
	assert.False(t, ok)
}

func TestExecutionContextJSON(t *testing.T) {
	ec := NewExecutionContext("demo", map[string]any{"x": "v"})
	ec.Steps.Set("zeta", ShellResult{Stdout: "out"})
	ec.Steps.Set("alpha", SkippedResult{Skipped: true, Reason: SkipReasonUnknownType})
	ec.Halted = true
	ec.Proposal = "PROPOSAL: out. To execute, re-run with confirm=true."

	data, err := json.Marshal(ec)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"steps":{"zeta":{"stdout":"out","stderr":"","exitCode":0},"alpha":{"skipped":true,"reason":"unknown_type"}}`)
	assert.Contains(t, out, `"halted":true`)
	assert.Contains(t, out, `"inputs":{"x":"v"}`)

	var restored ExecutionContext
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, ec.RunID, restored.RunID)
	assert.Equal(t, ec.Proposal, restored.Proposal)
	assert.Equal(t, []string{"zeta", "alpha"}, restored.Steps.Names())
	assert.Equal(t, "out", restored.Resolve("${steps.zeta.stdout}"))
	assert.Equal(t, "0", restored.Resolve("${steps.zeta.exitCode}"))
	assert.Equal(t, "unknown_type", restored.Resolve("${steps.alpha.reason}"))
}

func TestExecutionContextJSONWithoutProposal(t *testing.T) {
	data, err := json.Marshal(NewExecutionContext("demo", nil))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "proposal")
	assert.Contains(t, string(data), `"steps":{}`)
}

func TestExecutionContextYAML(t *testing.T) {
	ec := NewExecutionContext("demo", map[string]any{"x": "v"})
	ec.Steps.Set("zeta", ShellResult{Stdout: "out"})
	ec.Steps.Set("alpha", InteractiveResult{Confirmed: true})

	data, err := yaml.Marshal(ec)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "runId: "+ec.RunID)
	assert.Contains(t, out, "exitCode: 0")
	assert.Contains(t, out, "confirmed: true")
	assert.Less(t, strings.Index(out, "zeta:"), strings.Index(out, "alpha:"))
	assert.NotContains(t, out, "proposal")
}
