// Package progress handles progress reporting and interrupt-driven
// cancellation for archive runs.
package progress

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
)

// Options configures progress behavior.
type Options struct {
	Quiet   bool
	Verbose bool
}

// Manager drives an archive-wide progress bar and translates SIGINT/SIGTERM
// into context cancellation.
type Manager struct {
	options    Options
	bar        *progressbar.ProgressBar
	cancelFunc context.CancelFunc
	cancelled  bool
	cancelMux  sync.Mutex
	signalChan chan os.Signal
}

// NewManager creates a new progress manager.
func NewManager(options Options) *Manager {
	return &Manager{
		options:    options,
		signalChan: make(chan os.Signal, 1),
	}
}

// SetupCancellation installs signal handling. The returned context is
// cancelled on the first SIGINT or SIGTERM; hashing tasks already running
// are left to finish, no new work starts after cancellation.
func (pm *Manager) SetupCancellation(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	pm.cancelFunc = cancel

	signal.Notify(pm.signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-pm.signalChan:
			pm.cancelMux.Lock()
			pm.cancelled = true
			pm.cancelMux.Unlock()
			fmt.Fprintln(os.Stderr, "\nOperation cancelled, letting in-flight work finish")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}

// IsCancelled checks if the operation was cancelled.
func (pm *Manager) IsCancelled() bool {
	pm.cancelMux.Lock()
	defer pm.cancelMux.Unlock()
	return pm.cancelled
}

// Cleanup removes signal handlers.
func (pm *Manager) Cleanup() {
	signal.Stop(pm.signalChan)
	if pm.cancelFunc != nil {
		pm.cancelFunc()
	}
}

// InitBar initializes the byte-count progress bar. Pass -1 when the total
// is unknown to show a spinner instead.
func (pm *Manager) InitBar(totalBytes int64, description string) {
	if pm.options.Quiet {
		return
	}

	pm.bar = progressbar.NewOptions64(totalBytes,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(65),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)
}

// AddBytes advances the progress bar.
func (pm *Manager) AddBytes(n int64) {
	if pm.options.Quiet || pm.bar == nil {
		return
	}
	// #nosec G104 - progress bar errors are not critical for functionality
	pm.bar.Add64(n)
}

// Finish marks the progress bar complete.
func (pm *Manager) Finish() {
	if pm.options.Quiet || pm.bar == nil {
		return
	}
	// #nosec G104 - progress bar errors are not critical for functionality
	pm.bar.Finish()
}

// PrintVerbose prints verbose information if verbose mode is enabled.
func (pm *Manager) PrintVerbose(format string, args ...interface{}) {
	if !pm.options.Verbose {
		return
	}
	if pm.bar != nil {
		// #nosec G104 - progress bar clear is not critical for functionality
		pm.bar.Clear()
	}
	fmt.Printf(format, args...)
	if len(format) == 0 || format[len(format)-1] != '\n' {
		fmt.Println()
	}
}

// PrintInfo prints informational messages (unless quiet mode).
func (pm *Manager) PrintInfo(format string, args ...interface{}) {
	if pm.options.Quiet {
		return
	}
	if pm.bar != nil {
		// #nosec G104 - progress bar clear is not critical for functionality
		pm.bar.Clear()
	}
	fmt.Printf(format, args...)
}
