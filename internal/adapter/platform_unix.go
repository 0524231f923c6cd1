//go:build unix

package adapter

import (
	"errors"
	"os/exec"
	"syscall"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// setupProcessGroup puts the child in its own process group so that
// killProcessGroup can take out the whole tree in one signal.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the child's process group. Safe to call
// after the process has already exited.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}

	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

// fillExitStatus translates cmd.Wait's error into exit code and signal
// fields on the record.
func fillExitStatus(record *m.ExecutionRecord, waitErr error) {
	if waitErr == nil {
		record.ExitCode = 0
		return
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		record.ExitCode = -1
		return
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		record.ExitCode = exitErr.ExitCode()
		return
	}

	if status.Signaled() {
		record.Signaled = true
		record.Signal = status.Signal().String()
		record.ExitCode = 128 + int(status.Signal())

		return
	}

	record.ExitCode = status.ExitStatus()
}
