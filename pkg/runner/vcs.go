package runner

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// VersionControl answers the repository questions the step handlers ask
type VersionControl interface {
	// IsRepository reports whether dir is inside a work tree
	IsRepository(ctx context.Context, dir string) bool
	// ListFiles lists tracked and untracked, non-ignored files under path,
	// relative to dir
	ListFiles(ctx context.Context, dir, path string) ([]string, error)
	// StagedDiffStat returns the summary of staged changes
	StagedDiffStat(ctx context.Context, dir string) (string, error)
}

// Git implements VersionControl with the git command line
type Git struct {
	process ProcessRunner
}

// NewGit returns a Git that runs its commands through process
func NewGit(process ProcessRunner) *Git {
	return &Git{process: process}
}

// IsRepository implements VersionControl
func (g *Git) IsRepository(ctx context.Context, dir string) bool {
	out, err := g.run(ctx, dir, "git rev-parse --is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// ListFiles implements VersionControl
func (g *Git) ListFiles(ctx context.Context, dir, path string) ([]string, error) {
	// -z keeps non-ASCII names unquoted
	out, err := g.run(ctx, dir, "git ls-files -z --cached --others --exclude-standard -- "+shellQuote(path))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, name := range strings.Split(out, "\x00") {
		if name != "" {
			files = append(files, name)
		}
	}
	return files, nil
}

// StagedDiffStat implements VersionControl
func (g *Git) StagedDiffStat(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "git diff --stat --cached")
}

func (g *Git) run(ctx context.Context, dir, command string) (string, error) {
	res, err := g.process.Run(ctx, command, dir)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", errors.Errorf("%s exited with code %d: %s", command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
