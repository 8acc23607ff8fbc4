package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chili-ocx/pepper/pkg/presenter"
	"github.com/chili-ocx/pepper/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of pepper in JSON or YAML format.`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("output")
		info := version.Get()

		switch format {
		case "yaml":
			out, err := yaml.Marshal(info)
			if err != nil {
				presenter.Error(err, "Failed to format version info")
				os.Exit(1)
			}
			fmt.Print(string(out))
		case "json", "":
			out, err := info.JSON()
			if err != nil {
				presenter.Error(err, "Failed to format version info")
				os.Exit(1)
			}
			fmt.Println(out)
		default:
			presenter.Error(errors.Errorf("unsupported output format %q", format), "Invalid flag")
			os.Exit(1)
		}
	},
}

func init() {
	versionCmd.Flags().StringP("output", "o", "json", "Output format (json or yaml)")
}
