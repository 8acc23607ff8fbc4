package runner

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/chili-ocx/pepper/pkg/osutil"
)

// ProcessResult is the captured output of a finished process
type ProcessResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ProcessRunner runs a shell command line in a directory. A non-zero exit
// is reported through ExitCode; an error means the process could not run
// to completion.
type ProcessRunner interface {
	Run(ctx context.Context, command, dir string) (ProcessResult, error)
}

// DefaultShell interprets command lines
const DefaultShell = "sh"

// ShellProcessRunner runs commands through `<shell> -c`
type ShellProcessRunner struct {
	Shell string
	Env   []string
}

// Run implements ProcessRunner
func (r ShellProcessRunner) Run(ctx context.Context, command, dir string) (ProcessResult, error) {
	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = dir
	osutil.KillGroupOnCancel(cmd)
	if len(r.Env) > 0 {
		cmd.Env = r.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ProcessResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, errors.Wrap(ctx.Err(), "command interrupted")
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	result.ExitCode = -1
	return result, errors.Wrapf(err, "failed to start %s", shell)
}
