package model

import "time"

// SeedReport is the per-seed record appended to the report store. Every seed
// yields exactly one report: a verdict or a recorded error, never silence.
type SeedReport struct {
	Seed      string           `json:"seed"`
	Round     int              `json:"round"`
	Verdict   Verdict          `json:"verdict"`
	Features  []string         `json:"features,omitempty"`
	Filtered  bool             `json:"filtered,omitempty"`
	FilterHit string           `json:"filter_hit,omitempty"`
	Error     string           `json:"error,omitempty"`
	Original  ExecutionExcerpt `json:"original,omitempty"`
	Rewritten ExecutionExcerpt `json:"rewritten,omitempty"`
	StartedAt time.Time        `json:"started_at"`
}

// FailureRecord is persisted for every non-equivalent seed. A re-run that
// reproduces the same failure creates a new record; the dedup signature ties
// recurrences together.
type FailureRecord struct {
	Seed            string           `json:"seed"`
	Round           int              `json:"round"`
	Verdict         Verdict          `json:"verdict"`
	Signature       string           `json:"signature"`
	Features        []string         `json:"features,omitempty"`
	OriginalScript  string           `json:"original_script"`
	RewrittenScript string           `json:"rewritten_script"`
	Original        ExecutionExcerpt `json:"original"`
	Rewritten       ExecutionExcerpt `json:"rewritten"`
	Diff            string           `json:"diff,omitempty"`
	Filtered        bool             `json:"filtered,omitempty"`
	FilterHit       string           `json:"filter_hit,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// RoundSummary aggregates the verdicts of one testing round.
type RoundSummary struct {
	Round           int `json:"round"`
	Total           int `json:"total"`
	Equivalent      int `json:"equivalent"`
	Divergent       int `json:"divergent"`
	Timeouts        int `json:"timeouts"`
	Crashes         int `json:"crashes"`
	TransformErrors int `json:"transform_errors"`
	Filtered        int `json:"filtered"`
	IOErrors        int `json:"io_errors"`
}

// Count folds one seed report into the summary.
func (s *RoundSummary) Count(report SeedReport) {
	s.Total++

	switch report.Verdict {
	case VerdictEquivalent:
		s.Equivalent++
	case VerdictDivergent:
		s.Divergent++
	case VerdictTimeout:
		s.Timeouts++
	case VerdictCrash:
		s.Crashes++
	case VerdictTransformError:
		s.TransformErrors++
	}

	if report.Filtered {
		s.Filtered++
	}
}

// RunSummary aggregates a whole run across rounds, plus environment metadata.
type RunSummary struct {
	Rounds       int          `json:"rounds"`
	Totals       RoundSummary `json:"totals"`
	BashVersion  string       `json:"bash_version,omitempty"`
	PosixVersion string       `json:"posix_version,omitempty"`
	ReapedProcs  int          `json:"reaped_procs"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Merge folds a round summary into the run totals.
func (s *RunSummary) Merge(round RoundSummary) {
	s.Rounds++
	s.Totals.Total += round.Total
	s.Totals.Equivalent += round.Equivalent
	s.Totals.Divergent += round.Divergent
	s.Totals.Timeouts += round.Timeouts
	s.Totals.Crashes += round.Crashes
	s.Totals.TransformErrors += round.TransformErrors
	s.Totals.Filtered += round.Filtered
	s.Totals.IOErrors += round.IOErrors
}
