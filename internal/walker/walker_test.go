package walker_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/fingerprint"
	"github.com/UjOwtuc/bdup/internal/walker"
)

// sliceSource yields synthetic entries named by index.
func sliceSource(n int) walker.Source {
	return func(ctx context.Context, fn func(archive.FileEntry) error) error {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(archive.FileEntry{Path: fmt.Sprintf("entry-%04d", i), Size: int64(i)}); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestRunDeliversInSubmissionOrder(t *testing.T) {
	const n = 100
	pool := walker.New(8)

	// Entries submitted earlier sleep longer, so completion order is
	// roughly the reverse of submission order.
	task := func(entry *archive.FileEntry) (fingerprint.Sum, error) {
		time.Sleep(time.Duration(n-entry.Size) * 10 * time.Microsecond)
		return fingerprint.Sum{Digest: entry.Path, Bytes: entry.Size}, nil
	}

	var got []string
	err := pool.Run(context.Background(), sliceSource(n), task, func(r walker.Result) error {
		if r.Err != nil {
			t.Errorf("Unexpected task error for %s: %v", r.Entry.Path, r.Err)
		}
		got = append(got, r.Sum.Digest)
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(got) != n {
		t.Fatalf("Expected %d results, got %d", n, len(got))
	}
	for i, digest := range got {
		if want := fmt.Sprintf("entry-%04d", i); digest != want {
			t.Fatalf("Result %d out of order: expected %s, got %s", i, want, digest)
		}
	}
}

func TestRunDeliversTaskErrors(t *testing.T) {
	pool := walker.New(4)
	taskErr := errors.New("hash failed")

	task := func(entry *archive.FileEntry) (fingerprint.Sum, error) {
		if entry.Size == 2 {
			return fingerprint.Sum{}, taskErr
		}
		return fingerprint.Sum{Digest: entry.Path}, nil
	}

	var failed, succeeded int
	err := pool.Run(context.Background(), sliceSource(5), task, func(r walker.Result) error {
		if r.Err != nil {
			failed++
			if !errors.Is(r.Err, taskErr) {
				t.Errorf("Unexpected error: %v", r.Err)
			}
		} else {
			succeeded++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if failed != 1 || succeeded != 4 {
		t.Errorf("Expected 1 failure and 4 successes, got %d and %d", failed, succeeded)
	}
}

func TestRunConsumeErrorAbortsRun(t *testing.T) {
	pool := walker.New(2)
	abort := errors.New("stop here")

	task := func(entry *archive.FileEntry) (fingerprint.Sum, error) {
		return fingerprint.Sum{}, nil
	}

	var seen int
	err := pool.Run(context.Background(), sliceSource(1000), task, func(r walker.Result) error {
		seen++
		if seen == 3 {
			return abort
		}
		return nil
	})
	if !errors.Is(err, abort) {
		t.Fatalf("Expected consume error, got %v", err)
	}
	if seen != 3 {
		t.Errorf("Expected delivery to stop at result 3, got %d", seen)
	}
}

func TestRunCancellation(t *testing.T) {
	pool := walker.New(2)
	ctx, cancel := context.WithCancel(context.Background())

	task := func(entry *archive.FileEntry) (fingerprint.Sum, error) {
		return fingerprint.Sum{}, nil
	}

	var delivered int
	err := pool.Run(ctx, sliceSource(1000), task, func(r walker.Result) error {
		delivered++
		if delivered == 5 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if delivered >= 1000 {
		t.Error("Expected cancellation to stop the run early")
	}
}

func TestRunSourceError(t *testing.T) {
	pool := walker.New(2)
	srcErr := errors.New("root vanished")

	source := func(ctx context.Context, fn func(archive.FileEntry) error) error {
		if err := fn(archive.FileEntry{Path: "only"}); err != nil {
			return err
		}
		return srcErr
	}
	task := func(entry *archive.FileEntry) (fingerprint.Sum, error) {
		return fingerprint.Sum{}, nil
	}

	var delivered int
	err := pool.Run(context.Background(), source, task, func(r walker.Result) error {
		delivered++
		return nil
	})
	if !errors.Is(err, srcErr) {
		t.Fatalf("Expected source error, got %v", err)
	}
	if delivered != 1 {
		t.Errorf("Expected the completed result to be delivered, got %d", delivered)
	}
}

func TestNewDefaultsWorkerCount(t *testing.T) {
	if walker.New(0).Workers() <= 0 {
		t.Error("Expected a positive default worker count")
	}
	if got := walker.New(3).Workers(); got != 3 {
		t.Errorf("Expected 3 workers, got %d", got)
	}
}
