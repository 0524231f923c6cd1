package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shmorph.dev/pkg/shmorph/internal/adapter"
	"shmorph.dev/pkg/shmorph/internal/controller"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

// RunArgs contains the arguments for a differential run.
type RunArgs struct {
	RunID         string
	Seeds         m.Path
	BashShell     string
	PosixShell    string
	Features      []m.Feature
	Workers       int
	Rounds        int
	SeedsPerRound int
	Timeout       time.Duration
	MaxOutput     int
	ExcerptLimit  int
}

// maxIOErrors aborts a round once this many seeds fail on filesystem
// operations rather than verdicts. A broken disk should stop the run, a
// single unreadable seed should not.
const maxIOErrors = 5

// Pipeline coordinates transforming seeds and running both shapes under
// both interpreters.
type Pipeline interface {
	Run(ctx context.Context, args RunArgs) (m.RunSummary, error)
}

type pipeline struct {
	fs      adapter.SeedFSAdapter
	runner  adapter.ShellRunnerAdapter
	store   adapter.ReportStore
	seedgen adapter.SeedGenAdapter
	ui      controller.UI
	chain   *Chain
	filter  *NoiseFilter
}

// NewPipeline constructs a Pipeline with the provided dependencies. seedgen
// and filter may be nil.
func NewPipeline(
	fs adapter.SeedFSAdapter,
	runner adapter.ShellRunnerAdapter,
	store adapter.ReportStore,
	seedgen adapter.SeedGenAdapter,
	ui controller.UI,
	chain *Chain,
	filter *NoiseFilter,
) Pipeline {
	return &pipeline{
		fs:      fs,
		runner:  runner,
		store:   store,
		seedgen: seedgen,
		ui:      ui,
		chain:   chain,
		filter:  filter,
	}
}

func (p *pipeline) Run(ctx context.Context, args RunArgs) (m.RunSummary, error) {
	summary := m.RunSummary{StartedAt: time.Now()}

	for round := 1; round <= args.Rounds; round++ {
		if round > 1 && p.seedgen != nil {
			if err := p.generateSeeds(ctx, args, round); err != nil {
				return summary, err
			}
		}

		roundSummary, err := p.runRound(ctx, args, round)
		summary.Merge(roundSummary)

		if err != nil {
			return summary, err
		}

		if err := p.ui.DisplayRoundSummary(ctx, roundSummary); err != nil {
			slog.Error("Failed to display round summary", "error", err)
		}
	}

	summary.BashVersion = p.runner.Version(ctx, args.BashShell)
	summary.PosixVersion = p.runner.Version(ctx, args.PosixShell)
	summary.FinishedAt = time.Now()

	return summary, nil
}

func (p *pipeline) generateSeeds(ctx context.Context, args RunArgs, round int) error {
	output, err := p.seedgen.Generate(ctx, args.Seeds, args.SeedsPerRound, round)
	if err != nil {
		slog.Error("Seed generation failed", "round", round, "output", output, "error", err)
		return fmt.Errorf("generate seeds for round %d: %w", round, err)
	}

	slog.Info("generated seeds", "round", round, "count", args.SeedsPerRound)

	return nil
}

func (p *pipeline) runRound(ctx context.Context, args RunArgs, round int) (m.RoundSummary, error) {
	roundSummary := m.RoundSummary{Round: round}

	seeds, err := p.fs.ListSeeds(args.Seeds)
	if err != nil {
		return roundSummary, fmt.Errorf("list seeds: %w", err)
	}

	p.ui.DisplayRunInfo(ctx, len(seeds), args.Workers, round)

	var (
		mu       sync.Mutex
		ioErrors int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if args.Workers > 0 {
		group.SetLimit(args.Workers)
	}

	for _, seedPath := range seeds {
		seed := m.Seed{ID: uuid.NewString(), Path: seedPath, Round: round}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			p.ui.DisplaySeedStarted(groupCtx, seed)

			report, ioErr := p.testSeed(groupCtx, args, seed)

			// A cancelled seed was never fully observed; it is dropped, not
			// counted or classified.
			if ioErr != nil && (errors.Is(ioErr, context.Canceled) || errors.Is(ioErr, context.DeadlineExceeded)) {
				return ioErr
			}

			mu.Lock()
			roundSummary.Count(report)

			if ioErr != nil {
				roundSummary.IOErrors++
				ioErrors++

				aborting := ioErrors >= maxIOErrors
				mu.Unlock()

				slog.Error("Seed processing failed", "seed", seed.Path, "error", ioErr)

				if aborting {
					return fmt.Errorf("aborting round %d after %d I/O errors: %w", round, ioErrors, ioErr)
				}

				return nil
			}
			mu.Unlock()

			if err := p.store.AppendReport(report); err != nil {
				return fmt.Errorf("append report for %s: %w", seed.Path, err)
			}

			p.ui.DisplaySeedResult(groupCtx, report)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return roundSummary, err
	}

	return roundSummary, nil
}

// testSeed runs the full per-seed unit: transform, persist, execute both
// shapes, classify, record. Verdict-shaped outcomes land in the report; the
// error return is reserved for I/O failures around the seed itself.
func (p *pipeline) testSeed(ctx context.Context, args RunArgs, seed m.Seed) (m.SeedReport, error) {
	report := m.SeedReport{
		Seed:      string(seed.Path),
		Round:     seed.Round,
		StartedAt: time.Now(),
	}

	src, err := p.fs.ReadSeed(seed.Path)
	if err != nil {
		return report, fmt.Errorf("read seed: %w", err)
	}

	result, err := p.chain.Transform(src)
	if err != nil {
		report.Verdict = m.VerdictTransformError
		report.Error = err.Error()

		return report, nil
	}

	report.Features = result.TransformedFeatures.Names()

	rewrittenPath, err := p.fs.WriteRewritten(seed.Path, "", result.Script)
	if err != nil {
		return report, fmt.Errorf("write rewritten seed: %w", err)
	}

	original, rewritten, err := p.runPair(ctx, args, seed, rewrittenPath)
	if err != nil {
		return report, err
	}

	report.Verdict = Classify(original, rewritten)
	report.Original = original.Excerpt(args.ExcerptLimit)
	report.Rewritten = rewritten.Excerpt(args.ExcerptLimit)

	if report.Verdict != m.VerdictEquivalent {
		if err := p.recordFailure(&report, seed, src, result, original, rewritten); err != nil {
			return report, err
		}
	}

	return report, nil
}

// runPair executes the original under the bash interpreter and the rewritten
// script under the posix interpreter, concurrently. Each execution gets its
// own scratch directory so file-writing scripts cannot interfere.
func (p *pipeline) runPair(ctx context.Context, args RunArgs, seed m.Seed, rewrittenPath m.Path) (m.ExecutionRecord, m.ExecutionRecord, error) {
	var original, rewritten m.ExecutionRecord

	scratch, err := p.fs.CreateScratchDir("shmorph-" + seed.ID[:8] + "-*")
	if err != nil {
		return original, rewritten, fmt.Errorf("create scratch dir: %w", err)
	}

	defer func() {
		if err := p.fs.RemoveAll(scratch); err != nil {
			slog.Error("Failed to cleanup scratch dir", "dir", scratch, "error", err)
		}
	}()

	for _, sub := range []string{"original", "rewritten"} {
		if err := p.fs.EnsureDir(m.Path(filepath.Join(string(scratch), sub))); err != nil {
			return original, rewritten, fmt.Errorf("create scratch subdir: %w", err)
		}
	}

	absSeed, err := filepath.Abs(string(seed.Path))
	if err != nil {
		return original, rewritten, fmt.Errorf("resolve seed path: %w", err)
	}

	absRewritten, err := filepath.Abs(string(rewrittenPath))
	if err != nil {
		return original, rewritten, fmt.Errorf("resolve rewritten path: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		record, err := p.runner.Run(groupCtx, adapter.RunSpec{
			Interpreter: args.BashShell,
			Script:      m.Path(absSeed),
			WorkDir:     m.Path(filepath.Join(string(scratch), "original")),
			Timeout:     args.Timeout,
			MaxOutput:   args.MaxOutput,
			RunID:       args.RunID,
		})
		if err != nil {
			return err
		}

		original = record

		return nil
	})

	group.Go(func() error {
		record, err := p.runner.Run(groupCtx, adapter.RunSpec{
			Interpreter: args.PosixShell,
			Script:      m.Path(absRewritten),
			WorkDir:     m.Path(filepath.Join(string(scratch), "rewritten")),
			Timeout:     args.Timeout,
			MaxOutput:   args.MaxOutput,
			RunID:       args.RunID,
		})
		if err != nil {
			return err
		}

		rewritten = record

		return nil
	})

	if err := group.Wait(); err != nil {
		return original, rewritten, fmt.Errorf("run %s: %w", seed.Path, err)
	}

	return original, rewritten, nil
}

func (p *pipeline) recordFailure(report *m.SeedReport, seed m.Seed, src []byte, result ChainResult, original, rewritten m.ExecutionRecord) error {
	diff := OutputDiff(original, rewritten)

	failure := m.FailureRecord{
		Seed:            string(seed.Path),
		Round:           seed.Round,
		Verdict:         report.Verdict,
		Features:        report.Features,
		OriginalScript:  string(src),
		RewrittenScript: string(result.Script),
		Original:        report.Original,
		Rewritten:       report.Rewritten,
		Diff:            diff,
		CreatedAt:       time.Now(),
	}
	failure.Signature = Signature(report.Verdict, report.Features, original, rewritten, diff)

	if name, hit := p.filter.Match(failure); hit {
		failure.Filtered = true
		failure.FilterHit = name
		report.Filtered = true
		report.FilterHit = name
	}

	if err := p.store.AppendFailure(failure); err != nil {
		return fmt.Errorf("append failure for %s: %w", seed.Path, err)
	}

	return nil
}
