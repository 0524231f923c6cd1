package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	m "shmorph.dev/pkg/shmorph/internal/model"
	"shmorph.dev/pkg/shmorph/pkg"
)

// ReportStore persists run artifacts. Appends from concurrent workers are
// serialized by the underlying logs.
type ReportStore interface {
	AppendReport(report m.SeedReport) error
	AppendFailure(failure m.FailureRecord) error
	LoadReports() ([]m.SeedReport, error)
	LoadFailures() ([]m.FailureRecord, error)
	WriteSummary(summary m.RunSummary) error
	Close() error
}

// LocalReportStore keeps three files under a results directory: reports and
// failures as JSONL logs, the run summary as a single JSON document.
type LocalReportStore struct {
	dir      string
	reports  pkg.RecordLog[m.SeedReport]
	failures pkg.RecordLog[m.FailureRecord]
}

// NewLocalReportStore opens (or creates) the store under dir.
func NewLocalReportStore(dir m.Path) (*LocalReportStore, error) {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	reports, err := pkg.NewRecordLog[m.SeedReport](filepath.Join(string(dir), "reports.jsonl"))
	if err != nil {
		return nil, err
	}

	failures, err := pkg.NewRecordLog[m.FailureRecord](filepath.Join(string(dir), "failures.jsonl"))
	if err != nil {
		_ = reports.Close()
		return nil, err
	}

	return &LocalReportStore{
		dir:      string(dir),
		reports:  reports,
		failures: failures,
	}, nil
}

// AppendReport appends one seed report.
func (s *LocalReportStore) AppendReport(report m.SeedReport) error {
	return s.reports.Append(report)
}

// AppendFailure appends one failure record.
func (s *LocalReportStore) AppendFailure(failure m.FailureRecord) error {
	return s.failures.Append(failure)
}

// LoadReports reads back all seed reports.
func (s *LocalReportStore) LoadReports() ([]m.SeedReport, error) {
	var reports []m.SeedReport

	err := s.reports.Range(func(_ uint64, report m.SeedReport) error {
		reports = append(reports, report)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reports, nil
}

// LoadFailures reads back all failure records.
func (s *LocalReportStore) LoadFailures() ([]m.FailureRecord, error) {
	var failures []m.FailureRecord

	err := s.failures.Range(func(_ uint64, failure m.FailureRecord) error {
		failures = append(failures, failure)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return failures, nil
}

// WriteSummary writes the run summary, replacing any previous one.
func (s *LocalReportStore) WriteSummary(summary m.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	path := filepath.Join(s.dir, "summary.json")

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

// Close closes the underlying logs.
func (s *LocalReportStore) Close() error {
	reportsErr := s.reports.Close()
	failuresErr := s.failures.Close()

	if reportsErr != nil {
		return reportsErr
	}

	return failuresErr
}
