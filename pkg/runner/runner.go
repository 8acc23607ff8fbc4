// Package runner executes parsed skills step by step against an
// ExecutionContext. Steps run strictly in document order; each completed
// step's result is visible to every later step through template references.
// A run ends when all steps complete, when a step fails, or when an
// interactive step suspends awaiting confirmation.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chili-ocx/pepper/pkg/logger"
	"github.com/chili-ocx/pepper/pkg/skills"
	"github.com/chili-ocx/pepper/pkg/telemetry"
)

// DefaultLargePromptThreshold is the prompt length, in characters, above
// which llm_generate consults the staged diff
const DefaultLargePromptThreshold = 10000

// DefaultSkipDirs are never descended into when walking for regex_scan
var DefaultSkipDirs = []string{".git", ".hg", ".svn", "node_modules"}

// Outcome is what a step handler produces: Completed or Suspended
type Outcome interface {
	isOutcome()
}

// Completed carries the result of a step that finished
type Completed struct {
	Value Result
}

// Suspended stops the run and carries the proposal shown to the user
type Suspended struct {
	Proposal string
}

func (Completed) isOutcome() {}
func (Suspended) isOutcome() {}

// Runner executes skills. A Runner holds no per-run state and may be
// reused for any number of sequential or concurrent runs.
type Runner struct {
	workDir              string
	process              ProcessRunner
	fs                   FileSystem
	vcs                  VersionControl
	gate                 *Gate
	sink                 EventSink
	skipDirs             []string
	largePromptThreshold int
}

// Option configures a Runner
type Option func(*Runner) error

// WithWorkDir sets the directory commands and scans are relative to
func WithWorkDir(dir string) Option {
	return func(r *Runner) error {
		if dir == "" {
			return errors.New("work dir cannot be empty")
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve work dir %s", dir)
		}
		r.workDir = abs
		return nil
	}
}

// WithProcessRunner replaces the shell process runner
func WithProcessRunner(p ProcessRunner) Option {
	return func(r *Runner) error {
		r.process = p
		return nil
	}
}

// WithFileSystem replaces the host file system
func WithFileSystem(fsys FileSystem) Option {
	return func(r *Runner) error {
		r.fs = fsys
		return nil
	}
}

// WithVersionControl replaces the git integration. Passing nil disables
// repository-aware file discovery.
func WithVersionControl(vcs VersionControl) Option {
	return func(r *Runner) error {
		r.vcs = vcs
		if vcs == nil {
			r.vcs = noVersionControl{}
		}
		return nil
	}
}

// WithGate replaces the default permission gate
func WithGate(g *Gate) Option {
	return func(r *Runner) error {
		r.gate = g
		return nil
	}
}

// WithEventSink replaces the default logging sink
func WithEventSink(sink EventSink) Option {
	return func(r *Runner) error {
		r.sink = sink
		return nil
	}
}

// WithSkipDirs replaces the directory names skipped while walking
func WithSkipDirs(names ...string) Option {
	return func(r *Runner) error {
		r.skipDirs = names
		return nil
	}
}

// WithLargePromptThreshold sets when llm_generate consults the staged diff
func WithLargePromptThreshold(n int) Option {
	return func(r *Runner) error {
		if n <= 0 {
			return errors.Errorf("large prompt threshold must be positive, got %d", n)
		}
		r.largePromptThreshold = n
		return nil
	}
}

// New creates a Runner. Collaborators not supplied through options default
// to the host shell, file system and git.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		skipDirs:             append([]string(nil), DefaultSkipDirs...),
		largePromptThreshold: DefaultLargePromptThreshold,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get working directory")
		}
		r.workDir = wd
	}
	if r.process == nil {
		r.process = ShellProcessRunner{}
	}
	if r.fs == nil {
		r.fs = OSFileSystem{}
	}
	if r.vcs == nil {
		r.vcs = NewGit(r.process)
	}
	if r.gate == nil {
		g, err := NewGate()
		if err != nil {
			return nil, err
		}
		r.gate = g
	}
	if r.sink == nil {
		r.sink = LogSink{}
	}
	return r, nil
}

// WorkDir returns the directory the runner executes in
func (r *Runner) WorkDir() string {
	return r.workDir
}

// Run executes every step of skill in order. It returns the context as it
// stood when the run ended, together with the error that aborted it, if
// any. A suspended run returns Halted=true and a nil error.
func (r *Runner) Run(ctx context.Context, skill *skills.Skill, inputs map[string]any) (*ExecutionContext, error) {
	if skill == nil {
		return nil, errors.New("skill cannot be nil")
	}

	ec := NewExecutionContext(skill.Name, inputs)
	ctx = logger.WithLogger(ctx, logger.G(ctx).WithFields(logrus.Fields{
		"run_id": ec.RunID,
		"skill":  skill.Name,
	}))

	err := telemetry.WithSpan(ctx, "skill.run", func(ctx context.Context) error {
		r.emit(ctx, ec, Event{Kind: EventRunStarted})
		for _, step := range skill.Steps {
			r.emit(ctx, ec, Event{Kind: EventStepState, Step: step.Name, Type: step.Type, State: StepPending})
		}

		err := r.runSteps(ctx, ec, skill.Steps)
		r.emit(ctx, ec, Event{Kind: EventRunFinished, Err: err})
		return err
	},
		attribute.String("skill.id", skill.ID),
		attribute.String("skill.name", skill.Name),
		attribute.String("run.id", ec.RunID),
		attribute.Int("skill.steps", len(skill.Steps)),
	)
	return ec, err
}

func (r *Runner) runSteps(ctx context.Context, ec *ExecutionContext, steps []skills.Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "run cancelled")
		}

		r.emit(ctx, ec, Event{Kind: EventStepState, Step: step.Name, Type: step.Type, State: StepRunning})

		var outcome Outcome
		err := telemetry.WithSpan(ctx, "skill.step", func(ctx context.Context) error {
			var err error
			outcome, err = r.executeStep(ctx, ec, step)
			return err
		},
			attribute.String("step.name", step.Name),
			attribute.String("step.type", string(step.Type)),
		)
		if err != nil {
			r.emit(ctx, ec, Event{Kind: EventStepState, Step: step.Name, Type: step.Type, State: StepFailed, Err: err})
			return &StepError{Step: step.Name, Type: step.Type, Err: err}
		}

		switch o := outcome.(type) {
		case Completed:
			ec.Steps.Set(step.Name, o.Value)
			r.emit(ctx, ec, Event{Kind: EventStepState, Step: step.Name, Type: step.Type, State: StepSucceeded})
		case Suspended:
			ec.Halted = true
			ec.Proposal = o.Proposal
			r.emit(ctx, ec, Event{Kind: EventStepState, Step: step.Name, Type: step.Type, State: StepHalted, Message: o.Proposal})
			return nil
		default:
			return errors.Errorf("step %s produced no outcome", step.Name)
		}
	}
	return nil
}

func (r *Runner) executeStep(ctx context.Context, ec *ExecutionContext, step skills.Step) (Outcome, error) {
	cfg, err := step.Config()
	if err != nil {
		return nil, &FieldError{Step: step.Name, Err: err}
	}

	switch c := cfg.(type) {
	case skills.ShellConfig:
		return r.runShell(ctx, ec, step, c)
	case skills.RegexScanConfig:
		return r.runRegexScan(ctx, ec, step, c)
	case skills.GenerateConfig:
		return r.runGenerate(ctx, ec, c)
	case skills.InteractiveConfig:
		return r.runInteractive(ec, c)
	default:
		r.warn(ctx, ec, step, "unknown step type %q, skipping", step.Type)
		return Completed{Value: SkippedResult{Skipped: true, Reason: SkipReasonUnknownType}}, nil
	}
}

func (r *Runner) emit(ctx context.Context, ec *ExecutionContext, event Event) {
	event.RunID = ec.RunID
	event.Skill = ec.Skill
	event.Time = time.Now()
	r.sink.Emit(ctx, event)
}

func (r *Runner) warn(ctx context.Context, ec *ExecutionContext, step skills.Step, format string, args ...any) {
	r.emit(ctx, ec, Event{
		Kind:    EventWarning,
		Step:    step.Name,
		Type:    step.Type,
		Message: fmt.Sprintf(format, args...),
	})
}

// resolvePath resolves p against the runner work dir
func (r *Runner) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.workDir, p)
}

type noVersionControl struct{}

func (noVersionControl) IsRepository(context.Context, string) bool { return false }

func (noVersionControl) ListFiles(context.Context, string, string) ([]string, error) {
	return nil, errors.New("version control disabled")
}

func (noVersionControl) StagedDiffStat(context.Context, string) (string, error) {
	return "", errors.New("version control disabled")
}
