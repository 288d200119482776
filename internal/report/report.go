// Package report renders run summaries and maps run outcomes to process
// exit codes.
package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/UjOwtuc/bdup/internal/dedup"
	"github.com/UjOwtuc/bdup/internal/verify"
	"github.com/UjOwtuc/bdup/util"
)

// Exit codes: 0 clean, 1 integrity problems or link failures, 2 the archive
// was unusable before any work began.
const (
	ExitOK        = 0
	ExitIntegrity = 1
	ExitFatal     = 2
)

var (
	good = color.New(color.FgGreen).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
)

// PrintDedup renders a deduplication run summary.
func PrintDedup(w io.Writer, s *dedup.Summary) {
	fmt.Fprintf(w, "\nDeduplication run %s\n", s.RunID)
	fmt.Fprintf(w, "=====================================================\n")
	if s.DryRun {
		fmt.Fprintf(w, "%s no storage was modified\n", warn("dry run:"))
	}
	fmt.Fprintf(w, "Entries scanned:    %d\n", s.Entries)
	fmt.Fprintf(w, "Duplicate groups:   %d\n", s.Groups)
	fmt.Fprintf(w, "Duplicates linked:  %d\n", s.Linked)
	fmt.Fprintf(w, "Already linked:     %d\n", s.AlreadyLinked)
	fmt.Fprintf(w, "Reclaimed:          %s\n", util.HumanReadableSize(s.Reclaimed))

	printWarnings(w, s.Warnings)
	printFailures(w, s.Failures)

	if len(s.Failures) == 0 {
		fmt.Fprintf(w, "%s deduplication finished without errors\n", good("✓"))
	}
}

// PrintVerify renders a verification run summary.
func PrintVerify(w io.Writer, s *verify.Summary) {
	fmt.Fprintf(w, "\nVerification run %s\n", s.RunID)
	fmt.Fprintf(w, "=====================================================\n")
	fmt.Fprintf(w, "Entries scanned:    %d\n", s.Entries)
	fmt.Fprintf(w, "Verified OK:        %d\n", s.OK)
	fmt.Fprintf(w, "Mismatches:         %d\n", len(s.Mismatches))
	if s.DuplicateGroups > 0 {
		fmt.Fprintf(w, "Dedup opportunity:  %s in %d groups\n",
			util.HumanReadableSize(s.DuplicateBytes), s.DuplicateGroups)
	}

	printWarnings(w, s.Warnings)

	for _, m := range s.Mismatches {
		fmt.Fprintf(w, "%s %s: %s: expected %s, computed %s\n",
			bad("✗"), m.Kind, m.Entry.Ident(), m.Expected, m.Actual)
	}
	printFailures(w, s.Failures)

	if s.Clean() {
		fmt.Fprintf(w, "%s all entries verified successfully\n", good("✓"))
	}
}

func printWarnings(w io.Writer, warnings []string) {
	for _, message := range warnings {
		fmt.Fprintf(w, "%s %s\n", warn("warning:"), message)
	}
}

func printFailures(w io.Writer, failures []dedup.Failure) {
	for _, f := range failures {
		fmt.Fprintf(w, "%s %s failed for %s: %v\n", bad("✗"), f.Stage, f.Entry.Ident(), f.Err)
	}
}

// DedupExitCode maps a dedup summary to the process exit status. Hash
// failures count too: an unreadable entry is an integrity problem even
// though it merely excludes the entry from linking.
func DedupExitCode(s *dedup.Summary) int {
	if len(s.Failures) > 0 {
		return ExitIntegrity
	}
	return ExitOK
}

// VerifyExitCode maps a verify summary to the process exit status.
func VerifyExitCode(s *verify.Summary) int {
	if !s.Clean() {
		return ExitIntegrity
	}
	return ExitOK
}
