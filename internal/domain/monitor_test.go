package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shmorph.dev/pkg/shmorph/internal/adapter"
)

type fakeProcScanner struct {
	mu      sync.Mutex
	procs   []adapter.MarkedProc
	killed  []int
	findErr error
}

func (f *fakeProcScanner) FindMarked(runID string) ([]adapter.MarkedProc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}

	out := make([]adapter.MarkedProc, len(f.procs))
	copy(out, f.procs)

	return out, nil
}

func (f *fakeProcScanner) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.killed = append(f.killed, pid)

	remaining := f.procs[:0]
	for _, proc := range f.procs {
		if proc.PID != pid {
			remaining = append(remaining, proc)
		}
	}
	f.procs = remaining

	return nil
}

func (f *fakeProcScanner) killedPIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]int, len(f.killed))
	copy(out, f.killed)

	return out
}

func TestMonitor_PeriodicSweepHonorsGrace(t *testing.T) {
	scanner := &fakeProcScanner{
		procs: []adapter.MarkedProc{
			{PID: 100, Command: "bash", StartedAt: time.Now().Add(-time.Minute)},
			{PID: 200, Command: "dash", StartedAt: time.Now()},
		},
	}

	mon := NewMonitor(scanner, "run-1", time.Hour, 5*time.Second)
	mon.sweep(false)

	killed := scanner.killedPIDs()
	if len(killed) != 1 || killed[0] != 100 {
		t.Fatalf("expected only the stale process killed, got %v", killed)
	}

	if mon.Reaped() != 1 {
		t.Fatalf("expected 1 reaped process, got %d", mon.Reaped())
	}
}

func TestMonitor_UnknownStartTimeReaped(t *testing.T) {
	scanner := &fakeProcScanner{
		procs: []adapter.MarkedProc{{PID: 300, Command: "bash"}},
	}

	mon := NewMonitor(scanner, "run-1", time.Hour, time.Hour)
	mon.sweep(false)

	if mon.Reaped() != 1 {
		t.Fatalf("expected process with unknown start time reaped, got %d", mon.Reaped())
	}
}

func TestMonitor_FinalSweepTakesEverything(t *testing.T) {
	scanner := &fakeProcScanner{
		procs: []adapter.MarkedProc{
			{PID: 100, Command: "bash", StartedAt: time.Now()},
			{PID: 200, Command: "dash", StartedAt: time.Now()},
		},
	}

	mon := NewMonitor(scanner, "run-1", time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not return after context cancellation")
	}

	if mon.Reaped() != 2 {
		t.Fatalf("expected final sweep to reap both processes, got %d", mon.Reaped())
	}
}

func TestMonitor_ScanErrorSkipsSweep(t *testing.T) {
	scanner := &fakeProcScanner{findErr: errors.New("proc unavailable")}

	mon := NewMonitor(scanner, "run-1", time.Hour, time.Hour)
	mon.sweep(true)

	if mon.Reaped() != 0 {
		t.Fatalf("expected nothing reaped on scan error, got %d", mon.Reaped())
	}
}

func TestGraceFor(t *testing.T) {
	if got := GraceFor(30*time.Second, 10*time.Second); got != 30*time.Second {
		t.Fatalf("expected configured grace kept, got %v", got)
	}

	if got := GraceFor(3*time.Second, 10*time.Second); got != 10*time.Second+graceMargin {
		t.Fatalf("expected grace raised to timeout plus margin, got %v", got)
	}
}
