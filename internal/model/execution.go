package model

import "time"

// ExecutionRecord captures everything observable from running one script
// under one interpreter. Immutable once produced.
type ExecutionRecord struct {
	Interpreter string
	Stdout      []byte
	Stderr      []byte
	ExitCode    int
	Signaled    bool
	Signal      string
	TimedOut    bool
	Truncated   bool
	Duration    time.Duration
}

// Excerpt converts the record into its serializable report form, clipping
// captured output at limit bytes.
func (r ExecutionRecord) Excerpt(limit int) ExecutionExcerpt {
	return ExecutionExcerpt{
		Interpreter: r.Interpreter,
		Stdout:      clip(r.Stdout, limit),
		Stderr:      clip(r.Stderr, limit),
		ExitCode:    r.ExitCode,
		Signaled:    r.Signaled,
		Signal:      r.Signal,
		TimedOut:    r.TimedOut,
		Truncated:   r.Truncated,
		DurationMS:  r.Duration.Milliseconds(),
	}
}

func clip(b []byte, limit int) string {
	if limit > 0 && len(b) > limit {
		return string(b[:limit])
	}

	return string(b)
}

// ExecutionExcerpt is the report-friendly projection of an ExecutionRecord.
type ExecutionExcerpt struct {
	Interpreter string `json:"interpreter"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	ExitCode    int    `json:"exit_code"`
	Signaled    bool   `json:"signaled,omitempty"`
	Signal      string `json:"signal,omitempty"`
	TimedOut    bool   `json:"timed_out,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}
