package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chili-ocx/pepper/pkg/presenter"
	"github.com/chili-ocx/pepper/pkg/skills"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Inspect pepper skills",
	Long:  `List, show, lint and describe the inputs of the skills pepper can run.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available skills",
	Long:  `List available skills with their versions, step counts and descriptions.`,
	Run: func(_ *cobra.Command, _ []string) {
		discovery := mustDiscovery()
		if err := listSkills(os.Stdout, discovery); err != nil {
			reportLoadErrors(err)
		}
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Show a parsed skill",
	Long:  `Show the parsed form of a skill: metadata and every step with its fields.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("output")
		if err := showSkill(os.Stdout, mustDiscovery(), args[0], format); err != nil {
			presenter.Error(err, "Failed to show skill")
			os.Exit(1)
		}
	},
}

var skillSchemaCmd = &cobra.Command{
	Use:   "schema <skill>",
	Short: "Print the JSON schema of a skill's inputs",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		if err := writeSchema(os.Stdout, mustDiscovery(), args[0]); err != nil {
			presenter.Error(err, "Failed to describe skill inputs")
			os.Exit(1)
		}
	},
}

func init() {
	skillShowCmd.Flags().StringP("output", "o", OutputYAML, "Output format (json or yaml)")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillSchemaCmd)
	skillCmd.AddCommand(skillLintCmd)
}

func mustDiscovery() *skills.Discovery {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		presenter.Error(err, "Failed to load configuration")
		os.Exit(1)
	}
	workDir, err := resolveWorkDir("")
	if err != nil {
		presenter.Error(err, "Failed to resolve working directory")
		os.Exit(1)
	}
	discovery, err := newDiscovery(cfg, workDir)
	if err != nil {
		presenter.Error(err, "Failed to set up skill discovery")
		os.Exit(1)
	}
	return discovery
}

// reportLoadErrors shows every broken skill document as a warning
func reportLoadErrors(err error) {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			presenter.Warning(e.Error())
		}
		return
	}
	presenter.Warning(err.Error())
}

// listSkills prints a table of every skill that parses. Documents that do
// not parse are returned as an error after the table is written.
func listSkills(w io.Writer, discovery *skills.Discovery) error {
	loaded, loadErr := discovery.LoadAll()
	if len(loaded) == 0 {
		fmt.Fprintf(w, "No skills found in %v\n", discovery.Dirs())
		return loadErr
	}

	names := make([]string, 0, len(loaded))
	for name := range loaded {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSTEPS\tDESCRIPTION")
	for _, name := range names {
		skill := loaded[name]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", name, skill.Version, len(skill.Steps), skill.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return loadErr
}

func showSkill(w io.Writer, discovery *skills.Discovery, name, format string) error {
	skill, err := discovery.Resolve(name)
	if err != nil {
		return err
	}

	switch format {
	case OutputJSON:
		data, err := json.MarshalIndent(skill, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal skill")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(skill); err != nil {
			return errors.Wrap(err, "failed to marshal skill")
		}
		return enc.Close()
	default:
		return errors.Errorf("unsupported output format %q", format)
	}
}

func writeSchema(w io.Writer, discovery *skills.Discovery, name string) error {
	skill, err := discovery.Resolve(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(skills.InputSchema(skill), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal input schema")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
