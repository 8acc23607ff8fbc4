package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/chili-ocx/pepper/pkg/skills"
)

const (
	// GenerateModel identifies the offline heuristic in generated results
	GenerateModel = "heuristic-v1"
	// DefaultCommitMessage is produced when the prompt offers no hints
	DefaultCommitMessage = "chore: update file"
)

var fileMarker = regexp.MustCompile(`File:\s*(.+)`)

func (r *Runner) runGenerate(ctx context.Context, ec *ExecutionContext, cfg skills.GenerateConfig) (Outcome, error) {
	if cfg.MockOutput != "" {
		return Completed{Value: GenerateResult{Content: cfg.MockOutput, Model: GenerateModel}}, nil
	}

	prompt := ec.Resolve(cfg.Prompt)
	return Completed{Value: GenerateResult{
		Content: r.commitMessage(ctx, ec, prompt),
		Model:   GenerateModel,
	}}, nil
}

// commitMessage derives a conventional commit message from the prompt.
// Large prompts are summarised from the staged diff when one is available.
func (r *Runner) commitMessage(ctx context.Context, ec *ExecutionContext, prompt string) string {
	message := DefaultCommitMessage
	if m := fileMarker.FindStringSubmatch(prompt); m != nil {
		base := filepath.Base(strings.TrimSpace(m[1]))
		message = fmt.Sprintf("fix(%s): update %s", base, base)
	}

	if utf8.RuneCountInString(prompt) <= r.largePromptThreshold {
		return message
	}

	stat, err := r.vcs.StagedDiffStat(ctx, r.workDir)
	if err == nil {
		if summary := lastLine(stat); summary != "" {
			return "feat: " + summary
		}
	}

	r.emit(ctx, ec, Event{
		Kind:    EventWarning,
		Message: "prompt exceeds large prompt threshold and no staged diff is available, broadening message",
		Err:     err,
	})
	message = strings.Replace(message, "fix", "feat", 1)
	return strings.Replace(message, "update", "major update to", 1)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
