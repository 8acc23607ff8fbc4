package runner

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chili-ocx/pepper/pkg/skills"
)

// NoOutputAvailable is proposed when no earlier step produced a result
const NoOutputAvailable = "No output available"

func (r *Runner) runInteractive(ec *ExecutionContext, cfg skills.InteractiveConfig) (Outcome, error) {
	if Confirmed(ec.Inputs) {
		return Completed{Value: InteractiveResult{Confirmed: true}}, nil
	}
	return Suspended{Proposal: FormatProposal(proposalSource(ec, cfg.InputSource))}, nil
}

// Confirmed reports whether inputs carry a truthy confirm value: boolean
// true, or a string strconv.ParseBool accepts as true
func Confirmed(inputs map[string]any) bool {
	switch v := inputs[skills.ConfirmInput].(type) {
	case bool:
		return v
	case string:
		ok, err := strconv.ParseBool(v)
		return err == nil && ok
	}
	return false
}

// FormatProposal builds the text shown to the user when a run halts
func FormatProposal(output string) string {
	return fmt.Sprintf("PROPOSAL: %s. To execute, re-run with confirm=true.", output)
}

func proposalSource(ec *ExecutionContext, inputSource string) string {
	var result Result
	if inputSource != "" {
		if name := ec.Resolve(inputSource); name != "" {
			result, _ = ec.Steps.Get(name)
		}
	}
	if result == nil {
		_, result, _ = ec.Steps.Last()
	}
	if result == nil {
		return NoOutputAvailable
	}

	for _, field := range []string{"content", "stdout"} {
		if v, ok := result.Lookup(field); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return NoOutputAvailable
	}
	return string(data)
}
