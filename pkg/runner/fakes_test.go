package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chili-ocx/pepper/pkg/skills"
)

type processCall struct {
	Command string
	Dir     string
}

type fakeProcess struct {
	results map[string]ProcessResult
	err     error
	calls   []processCall
}

func (f *fakeProcess) Run(_ context.Context, command, dir string) (ProcessResult, error) {
	f.calls = append(f.calls, processCall{Command: command, Dir: dir})
	if f.err != nil {
		return ProcessResult{ExitCode: -1}, f.err
	}
	return f.results[command], nil
}

type fakeVCS struct {
	repo    bool
	files   []string
	listErr error
	stat    string
	statErr error
	listed  []string
}

func (f *fakeVCS) IsRepository(context.Context, string) bool { return f.repo }

func (f *fakeVCS) ListFiles(_ context.Context, _, path string) ([]string, error) {
	f.listed = append(f.listed, path)
	return f.files, f.listErr
}

func (f *fakeVCS) StagedDiffStat(context.Context, string) (string, error) {
	return f.stat, f.statErr
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, e Event) {
	s.events = append(s.events, e)
}

func (s *recordingSink) warnings() []string {
	var out []string
	for _, e := range s.events {
		if e.Kind == EventWarning {
			out = append(out, e.Message)
		}
	}
	return out
}

// newTestRunner returns a runner in a temp dir with version control off
// and events recorded
func newTestRunner(t *testing.T, opts ...Option) (*Runner, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	base := []Option{
		WithWorkDir(t.TempDir()),
		WithVersionControl(nil),
		WithEventSink(sink),
	}
	r, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return r, sink
}

func mustParse(t *testing.T, doc string) *skills.Skill {
	t.Helper()
	skill, err := skills.Parse("test", []byte(doc))
	require.NoError(t, err)
	return skill
}
