// Package walker runs per-entry hashing tasks on a bounded worker pool while
// delivering results in submission order, so downstream processing sees a
// deterministic sequence no matter which worker finishes first.
package walker

import (
	"context"
	"runtime"
	"sync"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/fingerprint"
)

// lookahead is the number of completed-but-undelivered results buffered
// beyond the worker count. Together with the pool size it caps the number of
// in-flight entries, keeping memory bounded for arbitrarily large archives.
const lookahead = 4

// Result pairs an entry with the outcome of its hashing task. A task failure
// does not cancel sibling tasks; it is delivered here.
type Result struct {
	Entry archive.FileEntry
	Sum   fingerprint.Sum
	Err   error
}

// Source feeds entries into the pool, typically Archive.Enumerate.
type Source func(ctx context.Context, fn func(archive.FileEntry) error) error

// Task computes one entry's fingerprint.
type Task func(*archive.FileEntry) (fingerprint.Sum, error)

// Pool is a fixed-size hashing worker pool.
type Pool struct {
	workers int
}

// New creates a pool. A non-positive worker count falls back to the number
// of CPUs.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

type job struct {
	entry archive.FileEntry
	done  chan Result
}

// Run pulls entries from source, hashes each on the pool and hands results
// to consume in submission order. When the in-flight cap is reached the
// producer blocks, applying backpressure to the source. Cancellation stops
// new submissions; tasks already running finish and their results are
// drained.
func (p *Pool) Run(ctx context.Context, source Source, task Task, consume func(Result) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job)
	pending := make(chan chan Result, p.workers+lookahead)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				sum, err := task(&j.entry)
				j.done <- Result{Entry: j.entry, Sum: sum, Err: err}
			}
		}()
	}

	produceErr := make(chan error, 1)
	go func() {
		defer close(pending)
		defer close(jobs)
		produceErr <- source(ctx, func(entry archive.FileEntry) error {
			done := make(chan Result, 1)
			select {
			case pending <- done:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case jobs <- job{entry: entry, done: done}:
			case <-ctx.Done():
				// the consumer already expects a result on this channel
				done <- Result{Entry: entry, Err: ctx.Err()}
				return ctx.Err()
			}
			return nil
		})
	}()

	var consumeErr error
	for done := range pending {
		result := <-done
		if consumeErr == nil {
			if consumeErr = consume(result); consumeErr != nil {
				cancel()
			}
		}
	}
	wg.Wait()

	if err := <-produceErr; err != nil && consumeErr == nil {
		return err
	}
	return consumeErr
}
