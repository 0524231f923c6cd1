// Package adapter contains infrastructure adapters for the shmorph CLI.
package adapter

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// RunMarkerEnv is the environment variable that tags every interpreter
// process spawned by a run. The process monitor matches orphans on it.
const RunMarkerEnv = "SHMORPH_RUN"

// RunSpec describes one script execution request.
type RunSpec struct {
	Interpreter string
	Script      m.Path
	WorkDir     m.Path
	Timeout     time.Duration
	MaxOutput   int
	RunID       string
}

// ShellRunnerAdapter abstracts script execution under an interpreter. The
// domain layer compares the records it returns without knowing how the
// processes were spawned or killed.
type ShellRunnerAdapter interface {
	// Run executes the script under the given interpreter and captures
	// everything observable about the process. A timeout or a signal death
	// is reported in the record, not as an error; err is reserved for
	// failures to spawn or observe the process at all.
	Run(ctx context.Context, spec RunSpec) (m.ExecutionRecord, error)

	// Version reports the interpreter's version string, best effort.
	Version(ctx context.Context, interpreter string) string
}

// LocalShellRunnerAdapter runs scripts via os/exec. Each child is placed in
// its own process group so a timeout kill takes the whole tree down, and is
// tagged with the run marker so stragglers can still be found afterwards.
type LocalShellRunnerAdapter struct{}

// NewLocalShellRunnerAdapter constructs a LocalShellRunnerAdapter.
func NewLocalShellRunnerAdapter() *LocalShellRunnerAdapter {
	return &LocalShellRunnerAdapter{}
}

// limitedWriter caps captured output at limit bytes. Writes past the limit
// are swallowed, not failed, so a chatty script still runs to completion.
type limitedWriter struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.limit > 0 && len(w.buf) >= w.limit {
		w.truncated = true
		return len(p), nil
	}

	room := len(p)
	if w.limit > 0 && len(w.buf)+room > w.limit {
		room = w.limit - len(w.buf)
		w.truncated = true
	}

	w.buf = append(w.buf, p[:room]...)

	return len(p), nil
}

func (w *limitedWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.buf
}

func (w *limitedWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.truncated
}

// Run executes the script, enforcing the timeout on the whole process group.
func (a *LocalShellRunnerAdapter) Run(ctx context.Context, spec RunSpec) (m.ExecutionRecord, error) {
	record := m.ExecutionRecord{Interpreter: spec.Interpreter}

	// The timeout is enforced manually rather than through
	// exec.CommandContext so the kill hits the process group, not just the
	// direct child.
	cmd := exec.Command(spec.Interpreter, string(spec.Script))
	cmd.Dir = string(spec.WorkDir)
	cmd.Env = controlledEnv(spec)
	setupProcessGroup(cmd)

	stdout := &limitedWriter{limit: spec.MaxOutput}
	stderr := &limitedWriter{limit: spec.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()

	if err := cmd.Start(); err != nil {
		return record, fmt.Errorf("start %s: %w", spec.Interpreter, err)
	}

	done := make(chan error, 1)

	go func() {
		done <- cmd.Wait()
	}()

	var (
		waitErr error
		timer   = time.NewTimer(spec.Timeout)
	)

	defer timer.Stop()

	select {
	case waitErr = <-done:
	case <-timer.C:
		record.TimedOut = true

		killProcessGroup(cmd)

		waitErr = <-done
	case <-ctx.Done():
		// Cancellation is not a verdict. The caller gets the context error
		// and must discard the run rather than classify it.
		killProcessGroup(cmd)
		<-done

		return record, ctx.Err()
	}

	record.Duration = time.Since(start)
	record.Stdout = stdout.Bytes()
	record.Stderr = stderr.Bytes()
	record.Truncated = stdout.Truncated() || stderr.Truncated()

	fillExitStatus(&record, waitErr)

	// The timeout kill shows up as a signal death, but timeout is the
	// stronger fact and masks it.
	if record.TimedOut {
		record.Signaled = false
		record.Signal = ""
	}

	return record, nil
}

// Version reports the interpreter's version string, best effort.
func (a *LocalShellRunnerAdapter) Version(ctx context.Context, interpreter string) string {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(runCtx, interpreter, "--version").Output()
	if err != nil || len(out) == 0 {
		// dash and friends do not support --version.
		out, err = exec.CommandContext(runCtx, interpreter, "-c", "echo \"${KSH_VERSION:-$0}\"").Output()
		if err != nil {
			return ""
		}
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")

	return line
}

// controlledEnv builds the fixed environment every execution runs under.
// Both interpreters see the same minimal environment so unset host
// variables cannot cause spurious divergence.
func controlledEnv(spec RunSpec) []string {
	dir := string(spec.WorkDir)

	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"LC_ALL=C",
		"LANG=C",
		"HOME=" + dir,
		"TMPDIR=" + dir,
		RunMarkerEnv + "=" + spec.RunID,
	}
}
