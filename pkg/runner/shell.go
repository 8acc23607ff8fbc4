package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/chili-ocx/pepper/pkg/skills"
)

func (r *Runner) runShell(ctx context.Context, ec *ExecutionContext, step skills.Step, cfg skills.ShellConfig) (Outcome, error) {
	if cfg.Command == "" {
		return nil, &MissingFieldError{Step: step.Name, Type: step.Type, Field: "command"}
	}
	command := ec.Resolve(cfg.Command)

	decision, err := r.gate.Check(command)
	if err != nil {
		return nil, err
	}
	if decision == Unchecked {
		r.warn(ctx, ec, step, "unchecked command allowed under %s policy: %s", PolicyDefaultAllow, command)
	}

	dir := r.workDir
	if cfg.Cwd != "" {
		if cwd := ec.Resolve(cfg.Cwd); cwd != "" {
			dir = r.resolvePath(cwd)
		}
	}

	res, err := r.process.Run(ctx, command, dir)
	if err != nil {
		if !cfg.IgnoreErrors {
			return nil, &ProcessError{Command: command, ExitCode: -1, Stdout: res.Stdout, Stderr: res.Stderr, Err: err}
		}
		return Completed{Value: ShellResult{
			Stdout:   strings.TrimSpace(res.Stdout),
			Stderr:   strings.TrimSpace(res.Stderr),
			ExitCode: -1,
			Error:    err.Error(),
		}}, nil
	}

	if res.ExitCode != 0 {
		if !cfg.IgnoreErrors {
			return nil, &ProcessError{Command: command, ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: strings.TrimSpace(res.Stderr)}
		}
		return Completed{Value: ShellResult{
			Stdout:   strings.TrimSpace(res.Stdout),
			Stderr:   strings.TrimSpace(res.Stderr),
			ExitCode: res.ExitCode,
			Error:    fmt.Sprintf("command failed with exit code %d: %s", res.ExitCode, command),
		}}, nil
	}

	return Completed{Value: ShellResult{
		Stdout: strings.TrimSpace(res.Stdout),
		Stderr: strings.TrimSpace(res.Stderr),
	}}, nil
}
