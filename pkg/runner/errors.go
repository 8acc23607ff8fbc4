package runner

import (
	"fmt"

	"github.com/chili-ocx/pepper/pkg/skills"
)

// MissingFieldError reports a required step field that is absent or empty
type MissingFieldError struct {
	Step  string
	Type  skills.StepType
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("step %s (%s) missing '%s' property", e.Step, e.Type, e.Field)
}

// FieldError reports a step field that is present but unusable, such as an
// undecodable value or an invalid regular expression
type FieldError struct {
	Step  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("step %s has invalid fields: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step %s has invalid '%s': %v", e.Step, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// SecurityViolation is raised when the permission gate blocks a command or
// a fail_if_match scan finds its pattern
type SecurityViolation struct {
	Command string
	File    string
	Pattern string
}

func (e *SecurityViolation) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("[Security] Command blocked: %s", e.Command)
	}
	return fmt.Sprintf("[Security] Regex match found in %s: %s", e.File, e.Pattern)
}

// ValidationViolation is raised when a fail_if_no_match scan finds nothing
type ValidationViolation struct {
	Path    string
	Pattern string
}

func (e *ValidationViolation) Error() string {
	return fmt.Sprintf("[Validation] Regex not found in %s: %s", e.Path, e.Pattern)
}

// ProcessError reports a shell command that exited non-zero or could not
// be started. ExitCode is -1 when the process never ran.
type ProcessError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.Command)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// StepError wraps the failure of a single step and aborts the run
type StepError struct {
	Step string
	Type skills.StepType
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.Step, e.Type, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause reach the underlying failure
func (e *StepError) Cause() error { return e.Err }
