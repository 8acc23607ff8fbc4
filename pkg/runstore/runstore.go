// Package runstore saves halted runs to disk so they can be resumed with
// confirmation later. Files are written and read under a file lock.
package runstore

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/chili-ocx/pepper/pkg/runner"
	"github.com/chili-ocx/pepper/pkg/skills"
)

// SavedRun is a halted run together with what is needed to re-run it
type SavedRun struct {
	Skill   string                   `json:"skill"`
	WorkDir string                   `json:"workDir"`
	Inputs  map[string]any           `json:"inputs"`
	Context *runner.ExecutionContext `json:"context"`
	SavedAt time.Time                `json:"savedAt"`
}

// ResumeInputs returns the original inputs with confirm set
func (r *SavedRun) ResumeInputs() map[string]any {
	inputs := make(map[string]any, len(r.Inputs)+1)
	for k, v := range r.Inputs {
		inputs[k] = v
	}
	inputs[skills.ConfirmInput] = true
	return inputs
}

// Save writes run to path, creating parent directories
func Save(path string, run *SavedRun) error {
	if run == nil || run.Context == nil {
		return errors.New("nothing to save")
	}
	if !run.Context.Halted {
		return errors.Errorf("run %s is not halted", run.Context.RunID)
	}
	if run.SavedAt.IsZero() {
		run.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal run")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create run directory")
	}
	if err := lockedfile.Write(path, bytes.NewReader(data), 0o644); err != nil {
		return errors.Wrap(err, "failed to write run file")
	}
	return nil
}

// Load reads a run saved by Save
func Load(path string) (*SavedRun, error) {
	data, err := lockedfile.Read(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read run file")
	}

	var run SavedRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal run file")
	}
	if run.Skill == "" || run.Context == nil {
		return nil, errors.Errorf("%s is not a saved run", path)
	}
	if !run.Context.Halted {
		return nil, errors.Errorf("run %s is not halted", run.Context.RunID)
	}
	if run.Inputs == nil {
		run.Inputs = map[string]any{}
	}
	return &run, nil
}

// Remove deletes a saved run. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove run file")
	}
	return nil
}
