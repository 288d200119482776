// Package verify recomputes content fingerprints across an archive and
// checks them against the checksums recorded at backup time. It shares the
// walker and hashing infrastructure with the deduplication engine and never
// mutates the archive.
package verify

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/dedup"
	"github.com/UjOwtuc/bdup/internal/fingerprint"
	"github.com/UjOwtuc/bdup/internal/walker"
)

const (
	// KindChecksum marks a recomputed fingerprint that differs from the
	// recorded one.
	KindChecksum = "checksum"
	// KindSharedStorage marks entries sharing one inode whose recomputed
	// fingerprints differ, meaning the shared storage object does not
	// hold what at least one of its entries claims.
	KindSharedStorage = "shared storage"
)

// Mismatch is one integrity finding. Mismatches are the expected output of
// verification, not errors.
type Mismatch struct {
	Entry    archive.FileEntry
	Kind     string
	Expected string
	Actual   string
}

// Summary is the result of one verification run.
type Summary struct {
	RunID   string
	Entries int
	OK      int

	Mismatches []Mismatch
	Failures   []dedup.Failure
	Warnings   []string

	// DuplicateGroups and DuplicateBytes report how much a subsequent
	// dedup run could reclaim, measured from the same (size, fingerprint)
	// index that run would use.
	DuplicateGroups int
	DuplicateBytes  int64
}

// Clean reports whether the run found no integrity problems.
func (s *Summary) Clean() bool {
	return len(s.Mismatches) == 0 && len(s.Failures) == 0
}

// Options configures a verification run.
type Options struct {
	Algorithm string
	Progress  dedup.ProgressReporter
}

type inodeKey struct {
	dev uint64
	ino uint64
}

type inodeGroup struct {
	entries []archive.FileEntry
	digests []string
}

// Engine verifies one archive.
type Engine struct {
	pool *walker.Pool
	opts Options

	index  map[dedup.Key][]archive.FileEntry
	inodes map[inodeKey]*inodeGroup
}

// New creates an engine running hashing tasks on pool. The pool is the same
// infrastructure deduplication uses; there is no verification-specific
// scheduling.
func New(pool *walker.Pool, opts Options) *Engine {
	return &Engine{
		pool:   pool,
		opts:   opts,
		index:  make(map[dedup.Key][]archive.FileEntry),
		inodes: make(map[inodeKey]*inodeGroup),
	}
}

// Run hashes every entry and collects mismatches. Recorded checksums are
// only comparable when hashing with md5, the digest burp records; with other
// algorithms only the shared-storage cross-check applies.
func (e *Engine) Run(ctx context.Context, a *archive.Archive) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}

	warn := func(err error) {
		summary.Warnings = append(summary.Warnings, err.Error())
	}
	source := func(ctx context.Context, fn func(archive.FileEntry) error) error {
		return a.Enumerate(ctx, fn, warn)
	}
	task := func(entry *archive.FileEntry) (fingerprint.Sum, error) {
		return fingerprint.Compute(entry, e.opts.Algorithm)
	}

	err := e.pool.Run(ctx, source, task, func(r walker.Result) error {
		e.collect(r, summary)
		return nil
	})
	if err != nil {
		return summary, err
	}

	e.checkSharedStorage(summary)
	e.countDuplicates(summary)
	return summary, nil
}

// countDuplicates sizes the dedup opportunity: entries beyond the first in
// each content group that do not already share the first entry's inode.
func (e *Engine) countDuplicates(summary *Summary) {
	for key, entries := range e.index {
		if len(entries) < 2 {
			continue
		}
		counted := false
		for i := 1; i < len(entries); i++ {
			same, err := archive.SameInode(entries[0].StoragePath(), entries[i].StoragePath())
			if err != nil || same {
				continue
			}
			counted = true
			summary.DuplicateBytes += key.Size
		}
		if counted {
			summary.DuplicateGroups++
		}
	}
}

func (e *Engine) collect(r walker.Result, summary *Summary) {
	summary.Entries++
	if r.Err != nil {
		summary.Failures = append(summary.Failures, dedup.Failure{Entry: r.Entry, Stage: "hash", Err: r.Err})
		return
	}
	if e.opts.Progress != nil {
		e.opts.Progress.AddBytes(r.Sum.Bytes)
	}

	usingMD5 := e.opts.Algorithm == "" || e.opts.Algorithm == fingerprint.AlgorithmMD5
	if usingMD5 && r.Entry.RecordedMD5 != "" && r.Sum.Digest != r.Entry.RecordedMD5 {
		summary.Mismatches = append(summary.Mismatches, Mismatch{
			Entry:    r.Entry,
			Kind:     KindChecksum,
			Expected: r.Entry.RecordedMD5,
			Actual:   r.Sum.Digest,
		})
	} else {
		summary.OK++
	}

	key := dedup.Key{Size: r.Entry.Size, Digest: r.Sum.Digest}
	e.index[key] = append(e.index[key], r.Entry)

	dev, ino, err := r.Entry.StorageIdentity()
	if err != nil {
		// hashing succeeded moments ago, so a stat failure here is
		// transient; the entry simply stays out of the inode check
		return
	}
	ik := inodeKey{dev: dev, ino: ino}
	g, exists := e.inodes[ik]
	if !exists {
		g = &inodeGroup{}
		e.inodes[ik] = g
	}
	g.entries = append(g.entries, r.Entry)
	g.digests = append(g.digests, r.Sum.Digest)
}

// checkSharedStorage flags inode groups whose members did not all hash to
// the same fingerprint. Two paths denoting one storage object must carry
// identical content; if they do not, the shared object was corrupted or the
// entries were never actually identical.
func (e *Engine) checkSharedStorage(summary *Summary) {
	var found []Mismatch
	for _, g := range e.inodes {
		if len(g.entries) < 2 {
			continue
		}
		reference := g.digests[0]
		conflict := false
		for _, digest := range g.digests[1:] {
			if digest != reference {
				conflict = true
				break
			}
		}
		if !conflict {
			continue
		}
		for i := range g.entries {
			found = append(found, Mismatch{
				Entry:    g.entries[i],
				Kind:     KindSharedStorage,
				Expected: reference,
				Actual:   g.digests[i],
			})
		}
	}

	// map iteration order is random, keep the report deterministic
	sort.Slice(found, func(i, j int) bool {
		return found[i].Entry.Ident() < found[j].Entry.Ident()
	})
	summary.Mismatches = append(summary.Mismatches, found...)
}
