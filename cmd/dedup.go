/*
Copyright © 2021 Karsten Borgwaldt
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/UjOwtuc/bdup/internal/dedup"
	"github.com/UjOwtuc/bdup/internal/progress"
	"github.com/UjOwtuc/bdup/internal/report"
	"github.com/UjOwtuc/bdup/internal/walker"
)

// dedupCmd represents the dedup command
var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Hard-link identical files across backups",
	Long: `Fingerprint every stored file in the archive and replace duplicates with
hard links to a single canonical copy.

The archive is scanned completely before anything is changed. Each duplicate
is relinked through a temporary name and an atomic rename, so an interrupted
run never leaves a backup without its data. Running dedup again on an already
deduplicated archive is a no-op.

Example:
  bdup dedup                      # deduplicate the whole archive
  bdup dedup --dry-run            # only report what would be linked
  bdup dedup --client alice -y    # one client, no confirmation prompt
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("dry-run") {
			cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
		}

		a, err := openArchive(cfg)
		if err != nil {
			return err
		}

		pm := progress.NewManager(progress.Options{Quiet: cfg.Quiet, Verbose: cfg.Verbose})
		defer pm.Cleanup()
		ctx := pm.SetupCancellation(cmd.Context())

		yes, _ := cmd.Flags().GetBool("yes")
		opts := dedup.Options{
			Algorithm: cfg.HashAlgorithm,
			DryRun:    cfg.DryRun,
			Progress:  pm,
		}
		if !yes && !cfg.DryRun {
			opts.Confirm = func(groups, duplicates int) (bool, error) {
				pm.Finish()
				if duplicates == 0 {
					return true, nil
				}
				return confirmRelink(groups, duplicates)
			}
		}

		engine := dedup.New(walker.New(cfg.Workers), opts)

		pm.InitBar(-1, "Hashing archive")
		summary, err := engine.Run(ctx, a)
		pm.Finish()
		if err != nil {
			return err
		}

		report.PrintDedup(os.Stdout, summary)
		exitCode = report.DedupExitCode(summary)
		return nil
	},
}

// confirmRelink asks before the linking phase touches storage.
func confirmRelink(groups, duplicates int) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Relink %d duplicates in %d groups", duplicates, groups),
		IsConfirm: true,
		Default:   "y",
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort {
			fmt.Println("Deduplication cancelled.")
			return false, nil
		}
		return false, fmt.Errorf("confirmation failed: %v", err)
	}
	return true, nil
}

func init() {
	rootCmd.AddCommand(dedupCmd)

	dedupCmd.Flags().BoolP("dry-run", "n", false, "Scan and report, do not modify storage")
	dedupCmd.Flags().BoolP("yes", "y", false, "Relink without asking for confirmation")
	dedupCmd.Flags().StringSlice("client", nil, "Only process this client (repeatable)")
}
