/*
Copyright © 2021 Karsten Borgwaldt
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/config"
	"github.com/UjOwtuc/bdup/internal/report"
)

// exitCode is set by subcommands that finish their run but found integrity
// problems. Errors returned from RunE always exit with ExitFatal instead.
var exitCode = report.ExitOK

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bdup",
	Short: "bdup - deduplicate and verify burp backup storage",
	Long: `bdup walks a burp server's storage directory, fingerprints every stored
file and collapses byte-identical copies into hard links. It can also verify
that stored files still match the checksums recorded at backup time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(report.ExitFatal)
	}
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringP("archive", "a", config.DefaultArchiveRoot, "Burp storage directory to operate on")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "Number of hashing workers (default: number of CPUs)")
	rootCmd.PersistentFlags().String("hash", "", "Fingerprint algorithm: md5, sha1, sha256, sha512 or blake3")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Disable progress bars and reduce output")
}

// loadConfig resolves the run configuration: built-in defaults, then the
// optional configuration file, then flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("archive") {
		cfg.ArchiveRoot, _ = flags.GetString("archive")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("hash") {
		cfg.HashAlgorithm, _ = flags.GetString("hash")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("quiet") {
		cfg.Quiet, _ = flags.GetBool("quiet")
	}
	if flags.Changed("client") {
		cfg.IncludeClients, _ = flags.GetStringSlice("client")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openArchive opens the configured storage root and applies the client
// filter.
func openArchive(cfg config.Config) (*archive.Archive, error) {
	a, err := archive.Open(cfg.ArchiveRoot)
	if err != nil {
		return nil, err
	}
	a.IncludeClients = cfg.IncludeClients
	return a, nil
}
