package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chili-ocx/pepper/pkg/logger"
	"github.com/chili-ocx/pepper/pkg/presenter"
	"github.com/chili-ocx/pepper/pkg/runner"
	"github.com/chili-ocx/pepper/pkg/runstore"
)

// ResumeConfig holds the flags of the resume command
type ResumeConfig struct {
	Keep    bool
	Output  string
	WorkDir string
	Quiet   bool
}

// NewResumeConfig creates a ResumeConfig with default values
func NewResumeConfig() *ResumeConfig {
	return &ResumeConfig{Output: OutputText}
}

var resumeCmd = &cobra.Command{
	Use:   "resume <file>",
	Short: "Confirm and continue a saved halted run",
	Long: `Resume a run saved with "pepper run --save". The skill is run again with
the saved inputs and confirm=true. The file is removed once the run
completes, unless --keep is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rc := getResumeConfigFromFlags(cmd)
		if err := (&RunConfig{Output: rc.Output}).Validate(); err != nil {
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
			return resumeRun(ctx, cfg, ui, os.Stdout, args[0], rc)
		})
		if err != nil {
			ui.Error(err, "Failed to resume run")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewResumeConfig()
	resumeCmd.Flags().Bool("keep", defaults.Keep, "Keep the saved run file after a successful resume")
	resumeCmd.Flags().StringP("output", "o", defaults.Output, "Print the execution context (json or yaml)")
	resumeCmd.Flags().String("workdir", defaults.WorkDir, "Override the directory saved with the run")
	resumeCmd.Flags().BoolP("quiet", "q", defaults.Quiet, "Only print proposals and errors")
}

func getResumeConfigFromFlags(cmd *cobra.Command) *ResumeConfig {
	config := NewResumeConfig()

	if keep, err := cmd.Flags().GetBool("keep"); err == nil {
		config.Keep = keep
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if workDir, err := cmd.Flags().GetString("workdir"); err == nil {
		config.WorkDir = workDir
	}
	if quiet, err := cmd.Flags().GetBool("quiet"); err == nil {
		config.Quiet = quiet
	}

	return config
}

func resumeRun(ctx context.Context, cfg *AppConfig, ui presenter.Presenter, out io.Writer, path string, rc *ResumeConfig) error {
	saved, err := runstore.Load(path)
	if err != nil {
		return err
	}

	workDir := saved.WorkDir
	if rc.WorkDir != "" {
		workDir = rc.WorkDir
	}
	if workDir == "" {
		return errors.Errorf("%s has no work dir, pass --workdir", path)
	}

	discovery, err := newDiscovery(cfg, workDir)
	if err != nil {
		return err
	}
	skill, err := discovery.Resolve(saved.Skill)
	if err != nil {
		return err
	}
	r, err := newRunner(cfg, workDir, newRunSink(ui))
	if err != nil {
		return err
	}

	logger.G(ctx).WithField("halted_run_id", saved.Context.RunID).Info("resuming halted run")
	ui.Section(fmt.Sprintf("%s (%s), resuming %s", skill.Name, skill.Version, saved.Context.RunID))

	ec, err := r.Run(ctx, skill, saved.ResumeInputs())
	if err := report(ui, out, ec, err, rc.Output, func(ec *runner.ExecutionContext) error {
		return errors.Errorf("run halted again at %q despite confirmation", ec.Proposal)
	}); err != nil {
		return err
	}

	if rc.Keep {
		return nil
	}
	return runstore.Remove(path)
}
