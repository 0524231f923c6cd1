package adapter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// MarkedProc is a live process carrying a run marker.
type MarkedProc struct {
	PID       int
	Command   string
	StartedAt time.Time
}

// ProcScannerAdapter finds processes tagged with a run marker so the
// monitor can reap anything the timeout kill missed.
type ProcScannerAdapter interface {
	// FindMarked returns all live processes whose environment carries the
	// given run marker value.
	FindMarked(runID string) ([]MarkedProc, error)

	// Kill force-kills a process by pid.
	Kill(pid int) error
}

// LocalProcScannerAdapter walks /proc directly. Reading another process's
// environ requires either ownership or privileges; entries we cannot read
// are skipped, which is correct since our children run as us.
type LocalProcScannerAdapter struct {
	procRoot string
	bootTime time.Time
	clockTck int64
}

// NewLocalProcScannerAdapter constructs a scanner rooted at /proc.
func NewLocalProcScannerAdapter() *LocalProcScannerAdapter {
	return &LocalProcScannerAdapter{
		procRoot: "/proc",
		bootTime: readBootTime("/proc/stat"),
		clockTck: readClockTick("/proc/self/auxv"),
	}
}

// FindMarked scans /proc for live processes whose environment contains the
// run marker set to runID.
func (a *LocalProcScannerAdapter) FindMarked(runID string) ([]MarkedProc, error) {
	entries, err := os.ReadDir(a.procRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.procRoot, err)
	}

	marker := []byte(RunMarkerEnv + "=" + runID)

	var found []MarkedProc

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		if pid == os.Getpid() {
			continue
		}

		environ, err := os.ReadFile(filepath.Join(a.procRoot, entry.Name(), "environ"))
		if err != nil {
			// Gone already, or not ours to inspect.
			continue
		}

		if !containsEnvEntry(environ, marker) {
			continue
		}

		found = append(found, MarkedProc{
			PID:       pid,
			Command:   a.readComm(entry.Name()),
			StartedAt: a.readStartTime(entry.Name()),
		})
	}

	return found, nil
}

// Kill force-kills the process. A vanished process is not an error.
func (a *LocalProcScannerAdapter) Kill(pid int) error {
	err := syscall.Kill(pid, syscall.SIGKILL)
	if err == nil || err == syscall.ESRCH {
		return nil
	}

	return fmt.Errorf("kill pid %d: %w", pid, err)
}

func (a *LocalProcScannerAdapter) readComm(pidDir string) string {
	comm, err := os.ReadFile(filepath.Join(a.procRoot, pidDir, "comm"))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(comm))
}

// readStartTime derives the process start time from field 22 of
// /proc/pid/stat (clock ticks since boot) and the boot time.
func (a *LocalProcScannerAdapter) readStartTime(pidDir string) time.Time {
	stat, err := os.ReadFile(filepath.Join(a.procRoot, pidDir, "stat"))
	if err != nil {
		return time.Time{}
	}

	// comm may contain spaces and parens; fields count from after the
	// closing paren.
	idx := bytes.LastIndexByte(stat, ')')
	if idx < 0 {
		return time.Time{}
	}

	fields := strings.Fields(string(stat[idx+1:]))
	if len(fields) < 20 {
		return time.Time{}
	}

	ticks, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil {
		return time.Time{}
	}

	return a.bootTime.Add(time.Duration(ticks/a.clockTck) * time.Second)
}

func containsEnvEntry(environ, marker []byte) bool {
	for _, entry := range bytes.Split(environ, []byte{0}) {
		if bytes.Equal(entry, marker) {
			return true
		}
	}

	return false
}

// atClktck is the auxiliary vector key carrying the kernel's clock tick rate.
const atClktck = 17

// readClockTick reads the ticks-per-second rate the kernel reports process
// times in. The auxiliary vector is an array of native-word key/value pairs
// terminated by a zero key; 100 is the rate on every mainstream kernel and
// serves as the fallback.
func readClockTick(auxvPath string) int64 {
	data, err := os.ReadFile(auxvPath)
	if err != nil {
		return 100
	}

	word := bits.UintSize / 8

	for i := 0; i+2*word <= len(data); i += 2 * word {
		key := nativeWord(data[i : i+word])
		if key == 0 {
			break
		}

		if value := nativeWord(data[i+word : i+2*word]); key == atClktck && value > 0 {
			return int64(value)
		}
	}

	return 100
}

func nativeWord(b []byte) uint64 {
	if len(b) == 4 {
		return uint64(binary.NativeEndian.Uint32(b))
	}

	return binary.NativeEndian.Uint64(b)
}

func readBootTime(statPath string) time.Time {
	data, err := os.ReadFile(statPath)
	if err != nil {
		slog.Warn("failed to read boot time", "path", statPath, "error", err)
		return time.Time{}
	}

	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "btime "); ok {
			sec, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				return time.Time{}
			}

			return time.Unix(sec, 0)
		}
	}

	return time.Time{}
}
