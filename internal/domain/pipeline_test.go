package domain

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"shmorph.dev/pkg/shmorph/internal/adapter"
	"shmorph.dev/pkg/shmorph/internal/controller"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

type fakeSeedFS struct {
	mu      sync.Mutex
	seeds   map[m.Path][]byte
	readErr map[m.Path]error
	written map[m.Path][]byte
}

func newFakeSeedFS() *fakeSeedFS {
	return &fakeSeedFS{
		seeds:   map[m.Path][]byte{},
		readErr: map[m.Path]error{},
		written: map[m.Path][]byte{},
	}
}

func (f *fakeSeedFS) ListSeeds(root m.Path) ([]m.Path, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]m.Path, 0, len(f.seeds))
	for path := range f.seeds {
		paths = append(paths, path)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	return paths, nil
}

func (f *fakeSeedFS) ReadSeed(path m.Path) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.readErr[path]; ok {
		return nil, err
	}

	return f.seeds[path], nil
}

func (f *fakeSeedFS) WriteRewritten(seed m.Path, dir m.Path, content []byte) (m.Path, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := m.Path(strings.TrimSuffix(string(seed), ".sh") + "_posix.sh")
	f.written[path] = content

	return path, nil
}

func (f *fakeSeedFS) CreateScratchDir(pattern string) (m.Path, error) {
	return "/tmp/fake-scratch", nil
}

func (f *fakeSeedFS) RemoveAll(path m.Path) error { return nil }

func (f *fakeSeedFS) EnsureDir(path m.Path) error { return nil }

type fakeShellRunner struct {
	mu      sync.Mutex
	records map[string]m.ExecutionRecord
	runErr  error
	calls   int
}

func (f *fakeShellRunner) Run(ctx context.Context, spec adapter.RunSpec) (m.ExecutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.runErr != nil {
		return m.ExecutionRecord{}, f.runErr
	}

	record := f.records[spec.Interpreter]
	record.Interpreter = spec.Interpreter

	return record, nil
}

func (f *fakeShellRunner) Version(ctx context.Context, interpreter string) string {
	return interpreter + " 1.0"
}

func (f *fakeShellRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type fakeReportStore struct {
	mu       sync.Mutex
	reports  []m.SeedReport
	failures []m.FailureRecord
}

func (s *fakeReportStore) AppendReport(report m.SeedReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, report)

	return nil
}

func (s *fakeReportStore) AppendFailure(failure m.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, failure)

	return nil
}

func (s *fakeReportStore) LoadReports() ([]m.SeedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]m.SeedReport(nil), s.reports...), nil
}

func (s *fakeReportStore) LoadFailures() ([]m.FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]m.FailureRecord(nil), s.failures...), nil
}

func (s *fakeReportStore) WriteSummary(summary m.RunSummary) error { return nil }

func (s *fakeReportStore) Close() error { return nil }

type nopUI struct{}

func (nopUI) Start(ctx context.Context, options ...controller.StartOption) error { return nil }
func (nopUI) Close(ctx context.Context)                                          {}
func (nopUI) Wait(ctx context.Context)                                           {}
func (nopUI) DisplayRunInfo(ctx context.Context, seeds, workers, round int)      {}
func (nopUI) DisplaySeedStarted(ctx context.Context, seed m.Seed)                {}
func (nopUI) DisplaySeedResult(ctx context.Context, report m.SeedReport)         {}
func (nopUI) DisplayRoundSummary(ctx context.Context, summary m.RoundSummary) error {
	return nil
}
func (nopUI) DisplayRunSummary(ctx context.Context, summary m.RunSummary) error { return nil }

func testRunArgs() RunArgs {
	return RunArgs{
		RunID:        "test-run",
		Seeds:        "seeds",
		BashShell:    "bash",
		PosixShell:   "dash",
		Workers:      2,
		Rounds:       1,
		Timeout:      time.Second,
		MaxOutput:    1 << 20,
		ExcerptLimit: 4096,
	}
}

func newTestPipeline(fs *fakeSeedFS, runner *fakeShellRunner, store *fakeReportStore, filter *NoiseFilter) Pipeline {
	return NewPipeline(fs, runner, store, nil, nopUI{}, NewDefaultChain(nil), filter)
}

func TestPipeline_EquivalentRun(t *testing.T) {
	fs := newFakeSeedFS()
	fs.seeds["seeds/a.sh"] = []byte("ls |& cat\n")
	fs.seeds["seeds/b.sh"] = []byte("echo hi <<< unused\n")

	record := m.ExecutionRecord{Stdout: []byte("hi\n"), ExitCode: 0}
	runner := &fakeShellRunner{records: map[string]m.ExecutionRecord{
		"bash": record,
		"dash": record,
	}}
	store := &fakeReportStore{}

	summary, err := newTestPipeline(fs, runner, store, nil).Run(context.Background(), testRunArgs())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Totals.Total != 2 || summary.Totals.Equivalent != 2 {
		t.Fatalf("unexpected totals: %+v", summary.Totals)
	}

	if len(store.reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(store.reports))
	}

	if len(store.failures) != 0 {
		t.Fatalf("expected no failures, got %d", len(store.failures))
	}

	if summary.BashVersion != "bash 1.0" || summary.PosixVersion != "dash 1.0" {
		t.Fatalf("unexpected interpreter versions: %q, %q", summary.BashVersion, summary.PosixVersion)
	}

	if _, ok := fs.written["seeds/a_posix.sh"]; !ok {
		t.Fatal("expected rewritten script persisted for seeds/a.sh")
	}
}

func TestPipeline_DivergentRecordsFailure(t *testing.T) {
	fs := newFakeSeedFS()
	fs.seeds["seeds/a.sh"] = []byte("ls |& cat\n")

	runner := &fakeShellRunner{records: map[string]m.ExecutionRecord{
		"bash": {Stdout: []byte("one\n"), ExitCode: 0},
		"dash": {Stdout: []byte("two\n"), ExitCode: 0},
	}}
	store := &fakeReportStore{}

	summary, err := newTestPipeline(fs, runner, store, nil).Run(context.Background(), testRunArgs())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Totals.Divergent != 1 {
		t.Fatalf("expected 1 divergent seed, got %+v", summary.Totals)
	}

	if len(store.failures) != 1 {
		t.Fatalf("expected 1 failure record, got %d", len(store.failures))
	}

	failure := store.failures[0]

	if failure.Verdict != m.VerdictDivergent {
		t.Fatalf("expected Divergent failure, got %s", failure.Verdict)
	}

	if len(failure.Signature) != 64 {
		t.Fatalf("expected sha256 signature, got %q", failure.Signature)
	}

	if !strings.Contains(failure.Diff, "-one") || !strings.Contains(failure.Diff, "+two") {
		t.Fatalf("expected output diff in failure record, got:\n%s", failure.Diff)
	}

	if failure.OriginalScript != "ls |& cat\n" {
		t.Fatalf("expected original script captured, got %q", failure.OriginalScript)
	}

	if !strings.Contains(failure.RewrittenScript, "2>&1 |") {
		t.Fatalf("expected rewritten script captured, got %q", failure.RewrittenScript)
	}

	if len(failure.Features) != 1 || failure.Features[0] != "StderrPipe" {
		t.Fatalf("unexpected features: %v", failure.Features)
	}
}

func TestPipeline_TransformErrorReported(t *testing.T) {
	fs := newFakeSeedFS()
	fs.seeds["seeds/broken.sh"] = []byte("if then fi (((\n")

	runner := &fakeShellRunner{records: map[string]m.ExecutionRecord{}}
	store := &fakeReportStore{}

	summary, err := newTestPipeline(fs, runner, store, nil).Run(context.Background(), testRunArgs())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Totals.TransformErrors != 1 {
		t.Fatalf("expected 1 transform error, got %+v", summary.Totals)
	}

	if len(store.reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(store.reports))
	}

	report := store.reports[0]

	if report.Verdict != m.VerdictTransformError || report.Error == "" {
		t.Fatalf("unexpected report: %+v", report)
	}

	if runner.callCount() != 0 {
		t.Fatalf("expected no executions for untransformable seed, got %d", runner.callCount())
	}
}

func TestPipeline_NoiseFilterAnnotates(t *testing.T) {
	fs := newFakeSeedFS()
	fs.seeds["seeds/a.sh"] = []byte("ls |& cat\n")

	runner := &fakeShellRunner{records: map[string]m.ExecutionRecord{
		"bash": {Stdout: []byte("run at 12:00:00\n"), ExitCode: 0},
		"dash": {Stdout: []byte("run at 12:00:01\n"), ExitCode: 0},
	}}
	store := &fakeReportStore{}

	filter, err := NewNoiseFilter([]m.NoiseRule{
		{Name: "timestamps", Target: "stdout", Pattern: `\d{2}:\d{2}:\d{2}`},
	})
	if err != nil {
		t.Fatalf("NewNoiseFilter failed: %v", err)
	}

	summary, err := newTestPipeline(fs, runner, store, filter).Run(context.Background(), testRunArgs())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Totals.Divergent != 1 || summary.Totals.Filtered != 1 {
		t.Fatalf("expected filtered divergence still counted as divergent, got %+v", summary.Totals)
	}

	report := store.reports[0]
	if !report.Filtered || report.FilterHit != "timestamps" {
		t.Fatalf("expected report annotated by noise filter, got %+v", report)
	}

	failure := store.failures[0]
	if !failure.Filtered || failure.FilterHit != "timestamps" {
		t.Fatalf("expected failure annotated by noise filter, got %+v", failure)
	}
}

func TestPipeline_CancelledSeedDropped(t *testing.T) {
	fs := newFakeSeedFS()
	fs.seeds["seeds/a.sh"] = []byte("echo hi\n")

	runner := &fakeShellRunner{runErr: context.Canceled}
	store := &fakeReportStore{}

	summary, err := newTestPipeline(fs, runner, store, nil).Run(context.Background(), testRunArgs())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if summary.Totals.Total != 0 || summary.Totals.Timeouts != 0 || summary.Totals.IOErrors != 0 {
		t.Fatalf("expected cancelled seed left uncounted, got %+v", summary.Totals)
	}

	if len(store.reports) != 0 || len(store.failures) != 0 {
		t.Fatalf("expected nothing recorded for a cancelled seed, got %d reports and %d failures",
			len(store.reports), len(store.failures))
	}
}

func TestPipeline_SingleIOErrorContinues(t *testing.T) {
	fs := newFakeSeedFS()
	fs.seeds["seeds/bad.sh"] = nil
	fs.readErr["seeds/bad.sh"] = errors.New("permission denied")
	fs.seeds["seeds/good.sh"] = []byte("echo hi\n")

	record := m.ExecutionRecord{Stdout: []byte("hi\n")}
	runner := &fakeShellRunner{records: map[string]m.ExecutionRecord{
		"bash": record,
		"dash": record,
	}}
	store := &fakeReportStore{}

	args := testRunArgs()
	args.Workers = 1

	summary, err := newTestPipeline(fs, runner, store, nil).Run(context.Background(), args)
	if err != nil {
		t.Fatalf("expected run to survive a single I/O error, got %v", err)
	}

	if summary.Totals.IOErrors != 1 || summary.Totals.Equivalent != 1 {
		t.Fatalf("unexpected totals: %+v", summary.Totals)
	}

	if len(store.reports) != 1 {
		t.Fatalf("expected only the good seed reported, got %d", len(store.reports))
	}
}

func TestPipeline_IOErrorBurstAborts(t *testing.T) {
	fs := newFakeSeedFS()
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		path := m.Path("seeds/" + name + ".sh")
		fs.seeds[path] = nil
		fs.readErr[path] = errors.New("disk gone")
	}

	runner := &fakeShellRunner{records: map[string]m.ExecutionRecord{}}
	store := &fakeReportStore{}

	args := testRunArgs()
	args.Workers = 1

	summary, err := newTestPipeline(fs, runner, store, nil).Run(context.Background(), args)
	if err == nil {
		t.Fatal("expected run to abort after repeated I/O errors")
	}

	if summary.Totals.IOErrors != maxIOErrors {
		t.Fatalf("expected %d I/O errors before abort, got %d", maxIOErrors, summary.Totals.IOErrors)
	}
}
