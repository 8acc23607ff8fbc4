package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chili-ocx/pepper/pkg/presenter"
	"github.com/chili-ocx/pepper/pkg/runner"
	"github.com/chili-ocx/pepper/pkg/runstore"
	"github.com/chili-ocx/pepper/pkg/skills"
)

// Output formats accepted by --output
const (
	OutputText = ""
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// RunConfig holds the flags of the run command
type RunConfig struct {
	Inputs  []string
	Confirm bool
	Prompt  bool
	Output  string
	Save    string
	WorkDir string
	Quiet   bool
}

// NewRunConfig creates a RunConfig with default values
func NewRunConfig() *RunConfig {
	return &RunConfig{
		Output: OutputText,
	}
}

// Validate checks flag combinations
func (c *RunConfig) Validate() error {
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return errors.Errorf("unsupported output format %q", c.Output)
	}
	if c.Prompt && c.Confirm {
		return errors.New("--prompt and --confirm cannot be used together")
	}
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run <skill>",
	Short: "Run a skill",
	Long: `Run a skill by name. Inputs are passed as key=value pairs.

A run that reaches an interactive step halts and prints its proposal. Re-run
with --confirm to apply it, answer the question with --prompt, or keep the
halted run with --save and continue later with "pepper resume".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rc := getRunConfigFromFlags(cmd)
		if err := rc.Validate(); err != nil {
			presenter.Error(err, "Invalid flags")
			os.Exit(1)
		}

		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			presenter.Error(err, "Failed to load configuration")
			os.Exit(1)
		}

		ui := newRunPresenter(rc.Output, rc.Quiet)
		err = traced(cmd, args, cfg, func(ctx context.Context) error {
			return runSkill(ctx, cfg, ui, os.Stdout, args[0], rc)
		})
		if err != nil {
			ui.Error(err, "Skill run failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewRunConfig()
	runCmd.Flags().StringArrayP("input", "i", nil, "Skill input as key=value (repeatable)")
	runCmd.Flags().Bool("confirm", defaults.Confirm, "Confirm interactive steps up front")
	runCmd.Flags().Bool("prompt", defaults.Prompt, "Ask for confirmation on the terminal when the run halts")
	runCmd.Flags().StringP("output", "o", defaults.Output, "Print the execution context (json or yaml)")
	runCmd.Flags().String("save", defaults.Save, "Save a halted run to this file for pepper resume")
	runCmd.Flags().String("workdir", defaults.WorkDir, "Directory to run in (defaults to the current directory)")
	runCmd.Flags().BoolP("quiet", "q", defaults.Quiet, "Only print proposals and errors")
}

func getRunConfigFromFlags(cmd *cobra.Command) *RunConfig {
	config := NewRunConfig()

	if inputs, err := cmd.Flags().GetStringArray("input"); err == nil {
		config.Inputs = inputs
	}
	if confirm, err := cmd.Flags().GetBool("confirm"); err == nil {
		config.Confirm = confirm
	}
	if prompt, err := cmd.Flags().GetBool("prompt"); err == nil {
		config.Prompt = prompt
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if save, err := cmd.Flags().GetString("save"); err == nil {
		config.Save = save
	}
	if workDir, err := cmd.Flags().GetString("workdir"); err == nil {
		config.WorkDir = workDir
	}
	if quiet, err := cmd.Flags().GetBool("quiet"); err == nil {
		config.Quiet = quiet
	}

	return config
}

// newRunPresenter keeps stdout free for the execution context when a
// structured output format is requested
func newRunPresenter(output string, quiet bool) presenter.Presenter {
	var ui *presenter.TerminalPresenter
	if output == OutputText {
		ui = presenter.New()
	} else {
		ui = presenter.NewWithOptions(os.Stderr, os.Stderr, os.Stdin, presenter.DetectColorMode())
	}
	ui.SetQuiet(quiet)
	return ui
}

// parseInputs turns key=value pairs into run inputs. Later pairs win.
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid input %q, expected key=value", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func resolveWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to get working directory")
	}
	return wd, nil
}

// runSkill resolves and runs a skill, then reports the outcome through ui
// and, when requested, writes the execution context to out
func runSkill(ctx context.Context, cfg *AppConfig, ui presenter.Presenter, out io.Writer, name string, rc *RunConfig) error {
	workDir, err := resolveWorkDir(rc.WorkDir)
	if err != nil {
		return err
	}
	inputs, err := parseInputs(rc.Inputs)
	if err != nil {
		return err
	}
	if rc.Confirm {
		inputs[skills.ConfirmInput] = true
	}

	discovery, err := newDiscovery(cfg, workDir)
	if err != nil {
		return err
	}
	skill, err := discovery.Resolve(name)
	if err != nil {
		return err
	}
	r, err := newRunner(cfg, workDir, newRunSink(ui))
	if err != nil {
		return err
	}

	ui.Section(fmt.Sprintf("%s (%s)", skill.Name, skill.Version))
	ec, err := r.Run(ctx, skill, inputs)
	if err == nil && ec.Halted && rc.Prompt {
		ui.Proposal(ec.Proposal)
		if ui.Confirm("Apply this proposal?") {
			inputs[skills.ConfirmInput] = true
			ec, err = r.Run(ctx, skill, inputs)
		} else {
			ui.Info("Proposal declined")
			return writeContext(out, ec, rc.Output)
		}
	}

	return report(ui, out, ec, err, rc.Output, func(ec *runner.ExecutionContext) error {
		if rc.Save == "" {
			ui.Info("Run halted awaiting confirmation. Re-run with --confirm to apply it.")
			return nil
		}
		saved := &runstore.SavedRun{Skill: name, WorkDir: r.WorkDir(), Inputs: inputs, Context: ec}
		if err := runstore.Save(rc.Save, saved); err != nil {
			return err
		}
		ui.Info(fmt.Sprintf("Run halted awaiting confirmation. Continue with: pepper resume %s", rc.Save))
		return nil
	})
}

// report presents the end of a run. onHalt is called after the proposal
// of a halted run has been shown.
func report(ui presenter.Presenter, out io.Writer, ec *runner.ExecutionContext, runErr error, format string, onHalt func(*runner.ExecutionContext) error) error {
	if runErr != nil {
		if ec != nil && format != OutputText {
			if err := writeContext(out, ec, format); err != nil {
				return multierror.Append(runErr, err)
			}
		}
		return runErr
	}

	if ec.Halted {
		ui.Proposal(ec.Proposal)
		if err := onHalt(ec); err != nil {
			return err
		}
	} else {
		ui.Success(fmt.Sprintf("%s completed %d step(s)", ec.Skill, ec.Steps.Len()))
	}
	return writeContext(out, ec, format)
}

// writeContext prints the execution context in a structured format. The
// text format prints nothing since the presenter already showed the run.
func writeContext(w io.Writer, ec *runner.ExecutionContext, format string) error {
	switch format {
	case OutputText:
		return nil
	case OutputJSON:
		data, err := json.MarshalIndent(ec, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal execution context")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ec); err != nil {
			return errors.Wrap(err, "failed to marshal execution context")
		}
		return enc.Close()
	default:
		return errors.Errorf("unsupported output format %q", format)
	}
}

func newRunSink(ui presenter.Presenter) runner.EventSink {
	return runner.MultiSink{runner.LogSink{}, runner.TraceSink{}, presenterSink(ui)}
}

// presenterSink shows step outcomes and warnings as they happen
func presenterSink(ui presenter.Presenter) runner.EventSink {
	return runner.EventSinkFunc(func(_ context.Context, event runner.Event) {
		switch event.Kind {
		case runner.EventStepState:
			switch event.State {
			case runner.StepSucceeded, runner.StepFailed, runner.StepHalted:
				ui.Step(event.Step, string(event.State), string(event.Type))
			}
		case runner.EventWarning:
			ui.Warning(fmt.Sprintf("%s: %s", event.Step, event.Message))
		}
	})
}
