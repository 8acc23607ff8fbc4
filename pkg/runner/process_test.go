package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chili-ocx/pepper/pkg/logger"
)

func TestShellProcessRunner(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	runner := ShellProcessRunner{}

	t.Run("captures output in dir", func(t *testing.T) {
		res, err := runner.Run(ctx, "pwd; echo oops 1>&2", dir)
		require.NoError(t, err)
		expected, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		assert.Equal(t, expected+"\n", res.Stdout)
		assert.Equal(t, "oops\n", res.Stderr)
		assert.Equal(t, 0, res.ExitCode)
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		res, err := runner.Run(ctx, "exit 4", dir)
		require.NoError(t, err)
		assert.Equal(t, 4, res.ExitCode)
	})

	t.Run("missing shell", func(t *testing.T) {
		res, err := ShellProcessRunner{Shell: "/nonexistent/shell"}.Run(ctx, "true", dir)
		require.Error(t, err)
		assert.Equal(t, -1, res.ExitCode)
	})

	t.Run("missing dir", func(t *testing.T) {
		res, err := runner.Run(ctx, "true", filepath.Join(dir, "nope"))
		require.Error(t, err)
		assert.Equal(t, -1, res.ExitCode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		res, err := runner.Run(cctx, "sleep 5", dir)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, -1, res.ExitCode)
	})

	t.Run("custom env", func(t *testing.T) {
		res, err := ShellProcessRunner{Env: []string{"GREETING=hello"}}.Run(ctx, "echo $GREETING", dir)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", res.Stdout)
	})
}

func TestGit(t *testing.T) {
	ctx := context.Background()

	t.Run("repository detection", func(t *testing.T) {
		proc := &fakeProcess{results: map[string]ProcessResult{
			"git rev-parse --is-inside-work-tree": {Stdout: "true\n"},
		}}
		assert.True(t, NewGit(proc).IsRepository(ctx, "/repo"))
		assert.Equal(t, "/repo", proc.calls[0].Dir)

		outside := &fakeProcess{results: map[string]ProcessResult{
			"git rev-parse --is-inside-work-tree": {Stderr: "fatal: not a git repository", ExitCode: 128},
		}}
		assert.False(t, NewGit(outside).IsRepository(ctx, "/tmp"))
	})

	t.Run("list files quotes the path", func(t *testing.T) {
		proc := &fakeProcess{results: map[string]ProcessResult{
			"git ls-files -z --cached --others --exclude-standard -- 'it'\\''s dir'": {Stdout: "a.go\x00\x00b/c d.go\x00"},
		}}
		files, err := NewGit(proc).ListFiles(ctx, "/repo", "it's dir")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.go", "b/c d.go"}, files)
	})

	t.Run("staged diff stat failure", func(t *testing.T) {
		proc := &fakeProcess{results: map[string]ProcessResult{
			"git diff --stat --cached": {Stderr: "fatal: bad revision\n", ExitCode: 128},
		}}
		_, err := NewGit(proc).StagedDiffStat(ctx, "/repo")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exited with code 128: fatal: bad revision")
	})

	t.Run("spawn failure", func(t *testing.T) {
		proc := &fakeProcess{err: errors.New("no git")}
		_, err := NewGit(proc).StagedDiffStat(ctx, "/repo")
		assert.EqualError(t, err, "no git")
	})
}

func TestGitWorkTree(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	dir := t.TempDir()

	res, err := ShellProcessRunner{}.Run(ctx, "git init -q", dir)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode, res.Stderr)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clé.txt"), []byte("AKIA_SECRET\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("nothing\n"), 0o644))

	t.Run("lists non-ASCII names unquoted", func(t *testing.T) {
		files, err := NewGit(ShellProcessRunner{}).ListFiles(ctx, dir, ".")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"clé.txt", "plain.txt"}, files)
	})

	t.Run("fail_if_match finds non-ASCII names", func(t *testing.T) {
		sink := &recordingSink{}
		r, err := New(WithWorkDir(dir), WithEventSink(sink))
		require.NoError(t, err)

		_, err = r.Run(ctx, mustParse(t, "## scan\ntype: regex_scan\nfile: .\npattern: AKIA_SECRET\nfail_if_match: true\n"), nil)
		var violation *SecurityViolation
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, "clé.txt", violation.File)
		assert.Empty(t, sink.warnings())
	})
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'src'", shellQuote("src"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)
	ctx := logger.WithLogger(context.Background(), logrus.NewEntry(log))

	sink := LogSink{}
	sink.Emit(ctx, Event{Kind: EventStepState, RunID: "r1", Skill: "demo", Step: "build", Type: "shell", State: StepSucceeded})
	sink.Emit(ctx, Event{Kind: EventWarning, RunID: "r1", Skill: "demo", Step: "build", Message: "unchecked command allowed"})
	sink.Emit(ctx, Event{Kind: EventStepState, RunID: "r1", Skill: "demo", Step: "build", State: StepFailed, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "step succeeded")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "step=build")
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "unchecked command allowed")
	assert.Contains(t, out, "error=boom")
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	MultiSink{a, b}.Emit(context.Background(), Event{Kind: EventRunStarted})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)

	var seen []EventKind
	EventSinkFunc(func(_ context.Context, e Event) { seen = append(seen, e.Kind) }).Emit(context.Background(), Event{Kind: EventWarning})
	assert.Equal(t, []EventKind{EventWarning}, seen)
}
