/*
Copyright © 2021 Karsten Borgwaldt
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/UjOwtuc/bdup/internal/progress"
	"github.com/UjOwtuc/bdup/internal/report"
	"github.com/UjOwtuc/bdup/internal/verify"
	"github.com/UjOwtuc/bdup/internal/walker"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check stored files against their recorded checksums",
	Long: `Recompute the checksum of every stored file and compare it with the one
recorded in the backup manifest. Files sharing a storage object are also
cross-checked against each other, so corruption introduced by deduplication
itself cannot go unnoticed.

Verification never modifies the archive. The exit status is 0 when every
entry checked out, 1 when any mismatch or read failure was found.

Example:
  bdup verify                   # verify the whole archive
  bdup verify --client alice    # verify a single client
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := openArchive(cfg)
		if err != nil {
			return err
		}

		pm := progress.NewManager(progress.Options{Quiet: cfg.Quiet, Verbose: cfg.Verbose})
		defer pm.Cleanup()
		ctx := pm.SetupCancellation(cmd.Context())

		engine := verify.New(walker.New(cfg.Workers), verify.Options{
			Algorithm: cfg.HashAlgorithm,
			Progress:  pm,
		})

		pm.InitBar(-1, "Verifying archive")
		summary, err := engine.Run(ctx, a)
		pm.Finish()
		if err != nil {
			return err
		}

		report.PrintVerify(os.Stdout, summary)
		exitCode = report.VerifyExitCode(summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringSlice("client", nil, "Only process this client (repeatable)")
}
