package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chili-ocx/pepper/pkg/logger"
	"github.com/chili-ocx/pepper/pkg/presenter"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("PEPPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.pepper")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "pepper",
	Short: "Run skill documents step by step",
	Long: `Pepper executes skills: markdown documents describing an ordered list of
shell, regex_scan, llm_generate and interactive steps. Runs that reach an
interactive step halt with a proposal and continue once confirmed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			presenter.Error(err, "Invalid logging configuration")
			os.Exit(1)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", logger.FormatText, "Log format (fmt or json)")
	rootCmd.PersistentFlags().StringSlice("skills-dir", nil, "Directories searched for skills, in precedence order")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("skills.dirs", rootCmd.PersistentFlags().Lookup("skills-dir"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext cancels ctx on SIGINT or SIGTERM so a run stops before its
// next step
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
