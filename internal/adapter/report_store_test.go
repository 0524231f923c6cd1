package adapter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

func TestLocalReportStore_AppendAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	store, err := NewLocalReportStore(m.Path(dir))
	if err != nil {
		t.Fatalf("NewLocalReportStore failed: %v", err)
	}
	defer store.Close()

	reports := []m.SeedReport{
		{Seed: "seeds/a.sh", Round: 1, Verdict: m.VerdictEquivalent},
		{Seed: "seeds/b.sh", Round: 1, Verdict: m.VerdictDivergent, Features: []string{"Array"}},
	}

	for _, report := range reports {
		if err := store.AppendReport(report); err != nil {
			t.Fatalf("AppendReport failed: %v", err)
		}
	}

	if err := store.AppendFailure(m.FailureRecord{
		Seed:      "seeds/b.sh",
		Verdict:   m.VerdictDivergent,
		Signature: "abc123",
	}); err != nil {
		t.Fatalf("AppendFailure failed: %v", err)
	}

	loaded, err := store.LoadReports()
	if err != nil {
		t.Fatalf("LoadReports failed: %v", err)
	}

	if len(loaded) != 2 || loaded[0].Seed != "seeds/a.sh" || loaded[1].Verdict != m.VerdictDivergent {
		t.Fatalf("unexpected reports: %+v", loaded)
	}

	failures, err := store.LoadFailures()
	if err != nil {
		t.Fatalf("LoadFailures failed: %v", err)
	}

	if len(failures) != 1 || failures[0].Signature != "abc123" {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestLocalReportStore_ReopenPreservesRecords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	store, err := NewLocalReportStore(m.Path(dir))
	if err != nil {
		t.Fatalf("NewLocalReportStore failed: %v", err)
	}

	if err := store.AppendReport(m.SeedReport{Seed: "seeds/a.sh", Verdict: m.VerdictEquivalent}); err != nil {
		t.Fatalf("AppendReport failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewLocalReportStore(m.Path(dir))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if err := reopened.AppendReport(m.SeedReport{Seed: "seeds/b.sh", Verdict: m.VerdictTimeout}); err != nil {
		t.Fatalf("AppendReport after reopen failed: %v", err)
	}

	loaded, err := reopened.LoadReports()
	if err != nil {
		t.Fatalf("LoadReports failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 reports across sessions, got %d", len(loaded))
	}
}

func TestLocalReportStore_WriteSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	store, err := NewLocalReportStore(m.Path(dir))
	if err != nil {
		t.Fatalf("NewLocalReportStore failed: %v", err)
	}
	defer store.Close()

	summary := m.RunSummary{
		Rounds:      2,
		Totals:      m.RoundSummary{Total: 10, Equivalent: 8, Divergent: 2},
		BashVersion: "GNU bash 5.2",
		ReapedProcs: 1,
		StartedAt:   time.Now().Add(-time.Minute),
		FinishedAt:  time.Now(),
	}

	if err := store.WriteSummary(summary); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}

	var decoded m.RunSummary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}

	if decoded.Rounds != 2 || decoded.Totals.Equivalent != 8 || decoded.ReapedProcs != 1 {
		t.Fatalf("unexpected summary: %+v", decoded)
	}
}
