// Package dedup collapses byte-identical stored files across an archive into
// hard links. It indexes every entry by (size, fingerprint) first and only
// then rewrites duplicates, so canonical election is stable and independent
// of mutation order.
package dedup

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/fingerprint"
	"github.com/UjOwtuc/bdup/internal/walker"
)

// Key is the content identity used for grouping: declared size as a cheap
// pre-filter, fingerprint as the authoritative test.
type Key struct {
	Size   int64
	Digest string
}

// Failure records one entry excluded from the run, with the stage that
// failed.
type Failure struct {
	Entry archive.FileEntry
	Stage string // "hash" or "link"
	Err   error
}

// Summary is the result of one deduplication run.
type Summary struct {
	RunID   string
	DryRun  bool
	Entries int

	// Groups counts canonical groups that contain at least one duplicate.
	Groups        int
	Linked        int
	AlreadyLinked int

	// Reclaimed is the sum of declared sizes of entries whose storage was
	// successfully relinked and therefore no longer consumes own space.
	Reclaimed int64

	Failures []Failure
	Warnings []string
}

// LinkFailures counts failures from the linking phase.
func (s *Summary) LinkFailures() int {
	n := 0
	for _, f := range s.Failures {
		if f.Stage == "link" {
			n++
		}
	}
	return n
}

// Linker performs the filesystem mutations of the linking phase. The
// indirection exists so tests can inject failures at any step.
type Linker interface {
	Link(oldname, newname string) error
	Rename(oldname, newname string) error
	Remove(name string) error
}

// ProgressReporter receives per-entry progress during the hashing phase.
type ProgressReporter interface {
	PrintVerbose(format string, args ...interface{})
	AddBytes(n int64)
}

// Options configures a run.
type Options struct {
	Algorithm string
	DryRun    bool

	// Linker defaults to the real filesystem.
	Linker   Linker
	Progress ProgressReporter

	// Confirm, when set, runs between the two phases with the number of
	// duplicate groups and duplicates found. Returning false ends the run
	// without touching storage.
	Confirm func(groups, duplicates int) (bool, error)
}

type group struct {
	canonical  archive.FileEntry
	duplicates []archive.FileEntry
}

// Engine deduplicates one archive.
type Engine struct {
	pool *walker.Pool
	opts Options

	index map[Key]*group
	order []Key
}

// New creates an engine running hashing tasks on pool.
func New(pool *walker.Pool, opts Options) *Engine {
	if opts.Linker == nil {
		opts.Linker = OSLinker{}
	}
	return &Engine{
		pool:  pool,
		opts:  opts,
		index: make(map[Key]*group),
	}
}

// Run executes the two phases: index everything, then relink duplicates.
// Per-entry failures are collected into the summary; only cancellation and
// archive-root failures abort the run.
func (e *Engine) Run(ctx context.Context, a *archive.Archive) (*Summary, error) {
	summary := &Summary{
		RunID:  uuid.NewString(),
		DryRun: e.opts.DryRun,
	}

	if err := e.indexPhase(ctx, a, summary); err != nil {
		return summary, err
	}
	if e.opts.Confirm != nil {
		groups, duplicates := e.pending()
		proceed, err := e.opts.Confirm(groups, duplicates)
		if err != nil {
			return summary, err
		}
		if !proceed {
			return summary, nil
		}
	}
	if err := e.linkPhase(ctx, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// pending counts the groups and duplicates the linking phase would touch.
func (e *Engine) pending() (groups, duplicates int) {
	for _, key := range e.order {
		if n := len(e.index[key].duplicates); n > 0 {
			groups++
			duplicates += n
		}
	}
	return groups, duplicates
}

// indexPhase hashes every entry and groups them by content identity. The
// walker delivers results in enumeration order, so the first entry seen for
// a key is the one with the lowest (client, backup, manifest position) and
// becomes the group's canonical member.
func (e *Engine) indexPhase(ctx context.Context, a *archive.Archive, summary *Summary) error {
	warn := func(err error) {
		summary.Warnings = append(summary.Warnings, err.Error())
	}
	source := func(ctx context.Context, fn func(archive.FileEntry) error) error {
		return a.Enumerate(ctx, fn, warn)
	}
	task := func(entry *archive.FileEntry) (fingerprint.Sum, error) {
		return fingerprint.Compute(entry, e.opts.Algorithm)
	}

	return e.pool.Run(ctx, source, task, func(r walker.Result) error {
		summary.Entries++
		if r.Err != nil {
			summary.Failures = append(summary.Failures, Failure{Entry: r.Entry, Stage: "hash", Err: r.Err})
			return nil
		}
		if e.opts.Progress != nil {
			e.opts.Progress.AddBytes(r.Sum.Bytes)
		}

		key := Key{Size: r.Entry.Size, Digest: r.Sum.Digest}
		if g, exists := e.index[key]; exists {
			g.duplicates = append(g.duplicates, r.Entry)
			return nil
		}
		e.index[key] = &group{canonical: r.Entry}
		e.order = append(e.order, key)
		return nil
	})
}

// linkPhase walks the index in insertion order and relinks every duplicate
// to its group's canonical entry. It runs single-threaded: linking is cheap
// next to hashing and a total order keeps the mutation sequence auditable.
func (e *Engine) linkPhase(ctx context.Context, summary *Summary) error {
	for _, key := range e.order {
		g := e.index[key]
		if len(g.duplicates) == 0 {
			continue
		}
		summary.Groups++

		for i := range g.duplicates {
			// no further mutations once cancellation is observed
			if err := ctx.Err(); err != nil {
				return err
			}
			e.linkDuplicate(&g.canonical, &g.duplicates[i], summary)
		}
	}
	return nil
}

func (e *Engine) linkDuplicate(canonical, dup *archive.FileEntry, summary *Summary) {
	canonicalPath := canonical.StoragePath()
	dupPath := dup.StoragePath()

	same, err := archive.SameInode(canonicalPath, dupPath)
	if err != nil {
		summary.Failures = append(summary.Failures, Failure{
			Entry: *dup,
			Stage: "link",
			Err:   fmt.Errorf("inode check: %w", err),
		})
		return
	}
	if same {
		summary.AlreadyLinked++
		e.verbose("  already linked: %s", dup.Ident())
		return
	}

	if e.opts.DryRun {
		summary.Linked++
		summary.Reclaimed += dup.Size
		e.verbose("  would link %s -> %s", dup.Ident(), canonical.Ident())
		return
	}

	// Build the new link at a temporary name next to the duplicate, then
	// rename it over the original. The rename is the only mutation visible
	// under the entry's path; if anything before it fails the original is
	// untouched.
	tmpPath := dupPath + ".bdup-tmp"
	if err := e.opts.Linker.Link(canonicalPath, tmpPath); err != nil {
		summary.Failures = append(summary.Failures, Failure{
			Entry: *dup,
			Stage: "link",
			Err:   fmt.Errorf("link %s: %w", canonicalPath, err),
		})
		return
	}
	if err := e.opts.Linker.Rename(tmpPath, dupPath); err != nil {
		// leave the original reachable, drop the half-created link
		_ = e.opts.Linker.Remove(tmpPath)
		summary.Failures = append(summary.Failures, Failure{
			Entry: *dup,
			Stage: "link",
			Err:   fmt.Errorf("rename over %s: %w", dupPath, err),
		})
		return
	}

	summary.Linked++
	summary.Reclaimed += dup.Size
	e.verbose("  linked %s -> %s", dup.Ident(), canonical.Ident())
}

func (e *Engine) verbose(format string, args ...interface{}) {
	if e.opts.Progress != nil {
		e.opts.Progress.PrintVerbose(format, args...)
	}
}
