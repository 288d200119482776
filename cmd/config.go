/*
Copyright © 2021 Karsten Borgwaldt
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/UjOwtuc/bdup/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect bdup's configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// configDumpCmd prints the resolved configuration
var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the resolved configuration as YAML",
	Long: `Print the configuration the other commands would run with, after merging
defaults, the configuration file and command line flags. The output is valid
input for --config.

Example:
  bdup config dump > ~/.bdup.yaml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return config.Dump(os.Stdout, cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}
