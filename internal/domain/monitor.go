package domain

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shmorph.dev/pkg/shmorph/internal/adapter"
)

// Monitor periodically sweeps for interpreter processes that outlived their
// execution slot. During the run only processes older than the grace period
// are reaped; the final sweep takes everything still carrying the marker.
type Monitor struct {
	scanner  adapter.ProcScannerAdapter
	runID    string
	interval time.Duration
	grace    time.Duration

	mu     sync.Mutex
	reaped int
}

// graceMargin pads the grace period beyond the execution timeout. A process
// inside its timeout window is the runner's to kill, never the sweep's.
const graceMargin = 5 * time.Second

// GraceFor returns the sweep grace period for a run whose executions are
// allowed the given timeout. A configured grace shorter than the timeout plus
// margin is raised to that floor.
func GraceFor(configured, timeout time.Duration) time.Duration {
	if floor := timeout + graceMargin; configured < floor {
		return floor
	}

	return configured
}

// NewMonitor constructs a Monitor for one run.
func NewMonitor(scanner adapter.ProcScannerAdapter, runID string, interval, grace time.Duration) *Monitor {
	return &Monitor{
		scanner:  scanner,
		runID:    runID,
		interval: interval,
		grace:    grace,
	}
}

// Run sweeps until ctx is cancelled, then performs the final sweep. Call it
// from its own goroutine; it returns only after the final sweep completes.
func (mon *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(mon.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mon.sweep(true)
			return
		case <-ticker.C:
			mon.sweep(false)
		}
	}
}

// Reaped reports how many processes were killed by sweeps so far.
func (mon *Monitor) Reaped() int {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	return mon.reaped
}

func (mon *Monitor) sweep(final bool) {
	procs, err := mon.scanner.FindMarked(mon.runID)
	if err != nil {
		slog.Warn("process sweep failed", "error", err)
		return
	}

	cutoff := time.Now().Add(-mon.grace)

	for _, proc := range procs {
		if !final && !proc.StartedAt.IsZero() && proc.StartedAt.After(cutoff) {
			continue
		}

		if err := mon.scanner.Kill(proc.PID); err != nil {
			slog.Warn("failed to kill orphaned process", "pid", proc.PID, "command", proc.Command, "error", err)
			continue
		}

		slog.Info("reaped orphaned process", "pid", proc.PID, "command", proc.Command, "final", final)

		mon.mu.Lock()
		mon.reaped++
		mon.mu.Unlock()
	}
}
