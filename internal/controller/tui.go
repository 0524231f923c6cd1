package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output  io.Writer
	program *tea.Program

	mu   sync.Mutex
	done chan struct{}
}

// NewTUI creates a new TUI writing to output.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the Bubble Tea program in the background.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := StartConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.done = make(chan struct{})
	t.program = tea.NewProgram(newRunModel(cfg.mode), tea.WithOutput(t.output))

	go func() {
		defer close(t.done)

		_, _ = t.program.Run()
	}()

	return nil
}

// Close stops the program.
func (t *TUI) Close(ctx context.Context) {
	t.mu.Lock()
	program, done := t.program, t.done
	t.mu.Unlock()

	if program == nil {
		return
	}

	program.Send(runFinishedMsg{})

	select {
	case <-done:
	case <-ctx.Done():
		program.Kill()
	}
}

// Wait blocks until the user closes the UI.
func (t *TUI) Wait(ctx context.Context) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// DisplayRunInfo shows the round's work settings.
func (t *TUI) DisplayRunInfo(ctx context.Context, seeds, workers, round int) {
	t.send(ctx, runInfoMsg{seeds: seeds, workers: workers, round: round})
}

// DisplaySeedStarted shows info about a seed execution starting.
func (t *TUI) DisplaySeedStarted(ctx context.Context, seed m.Seed) {
	t.send(ctx, seedStartedMsg{seed: seed})
}

// DisplaySeedResult shows the verdict for one seed.
func (t *TUI) DisplaySeedResult(ctx context.Context, report m.SeedReport) {
	t.send(ctx, seedResultMsg{report: report})
}

// DisplayRoundSummary records the per-round summary.
func (t *TUI) DisplayRoundSummary(ctx context.Context, summary m.RoundSummary) error {
	t.send(ctx, roundSummaryMsg{summary: summary})
	return ctx.Err()
}

// DisplayRunSummary records the final run summary.
func (t *TUI) DisplayRunSummary(ctx context.Context, summary m.RunSummary) error {
	t.send(ctx, runSummaryMsg{summary: summary})
	return ctx.Err()
}

func (t *TUI) send(ctx context.Context, msg tea.Msg) {
	if err := ctx.Err(); err != nil {
		return
	}

	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

type runInfoMsg struct {
	seeds   int
	workers int
	round   int
}

type seedStartedMsg struct {
	seed m.Seed
}

type seedResultMsg struct {
	report m.SeedReport
}

type roundSummaryMsg struct {
	summary m.RoundSummary
}

type runSummaryMsg struct {
	summary m.RunSummary
}

type runFinishedMsg struct{}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	currentStyle = lipgloss.NewStyle().Faint(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// runModel is the Bubble Tea model for a differential run in progress.
type runModel struct {
	mode StartMode

	spin spinner.Model
	bar  progress.Model

	round    int
	total    int
	finished int
	summary  m.RoundSummary
	run      *m.RunSummary
	current  []string
	failures []string
	quitting bool
}

func newRunModel(mode StartMode) runModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return runModel{
		mode: mode,
		spin: spin,
		bar:  progress.New(progress.WithDefaultGradient()),
	}
}

func (rm runModel) Init() tea.Cmd {
	return rm.spin.Tick
}

func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			rm.quitting = true
			return rm, tea.Quit
		}

		return rm, nil

	case tea.WindowSizeMsg:
		rm.bar.Width = msg.Width - 8
		return rm, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		rm.spin, cmd = rm.spin.Update(msg)

		return rm, cmd

	case runInfoMsg:
		rm.round = msg.round
		rm.total = msg.seeds
		rm.finished = 0
		rm.summary = m.RoundSummary{Round: msg.round}

		return rm, nil

	case seedStartedMsg:
		rm.current = append(rm.current, string(msg.seed.Path))
		return rm, nil

	case seedResultMsg:
		rm.finished++
		rm.summary.Count(msg.report)
		rm.current = removeEntry(rm.current, msg.report.Seed)

		if msg.report.Verdict != m.VerdictEquivalent && !msg.report.Filtered {
			rm.failures = append(rm.failures, fmt.Sprintf("%s: %s", msg.report.Verdict, msg.report.Seed))
		}

		return rm, nil

	case roundSummaryMsg:
		rm.summary = msg.summary
		return rm, nil

	case runSummaryMsg:
		summary := msg.summary
		rm.run = &summary

		return rm, nil

	case runFinishedMsg:
		return rm, tea.Quit
	}

	return rm, nil
}

func (rm runModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("shmorph - differential shell testing"))
	b.WriteString("\n\n")

	if rm.total > 0 {
		fmt.Fprintf(&b, "  Round %d: %d/%d seeds\n", rm.round, rm.finished, rm.total)
		b.WriteString("  " + rm.bar.ViewAs(float64(rm.finished)/float64(rm.total)) + "\n\n")
	}

	for _, path := range rm.current {
		fmt.Fprintf(&b, "  %s %s\n", rm.spin.View(), currentStyle.Render(path))
	}

	if len(rm.current) > 0 {
		b.WriteString("\n")
	}

	// Only the tail of the failure list fits comfortably on screen.
	failures := rm.failures
	if len(failures) > 10 {
		failures = failures[len(failures)-10:]
	}

	for _, failure := range failures {
		fmt.Fprintf(&b, "  %s\n", failStyle.Render(failure))
	}

	if rm.run != nil {
		b.WriteString("\n")
		fmt.Fprintf(&b, "  Equivalent: %d  Divergent: %d  Timeout: %d  Crash: %d  TransformError: %d\n",
			rm.run.Totals.Equivalent, rm.run.Totals.Divergent, rm.run.Totals.Timeouts,
			rm.run.Totals.Crashes, rm.run.Totals.TransformErrors)
		b.WriteString("\n  Press q to quit\n")
	}

	return b.String()
}

func removeEntry(entries []string, target string) []string {
	for i, entry := range entries {
		if entry == target {
			return append(entries[:i], entries[i+1:]...)
		}
	}

	return entries
}
