package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// SimpleUI implements UI using cobra Command's output stream.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

var (
	equivalentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	divergentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	timeoutStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	crashStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	filteredStyle   = lipgloss.NewStyle().Faint(true)
)

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	// SimpleUI doesn't block - it just prints and continues
}

// DisplayRunInfo shows the round's work settings.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, seeds, workers, round int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Round %d: running %d seed(s) with %d worker(s)\n", round, seeds, workers)
}

// DisplaySeedStarted shows info about a seed execution starting.
func (s *SimpleUI) DisplaySeedStarted(ctx context.Context, seed m.Seed) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Testing %s\n", seed.Path)
}

// DisplaySeedResult shows the verdict for one seed.
func (s *SimpleUI) DisplaySeedResult(ctx context.Context, report m.SeedReport) {
	if err := ctx.Err(); err != nil {
		return
	}

	label := verdictLabel(report.Verdict)
	if report.Filtered {
		label = filteredStyle.Render(string(report.Verdict) + " (filtered: " + report.FilterHit + ")")
	}

	s.printf("%-12s %s\n", label, report.Seed)

	if report.Error != "" {
		s.printf("  %s\n", report.Error)
	}
}

// DisplayRoundSummary prints a per-round verdict table.
func (s *SimpleUI) DisplayRoundSummary(ctx context.Context, summary m.RoundSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderRoundTable(summary))

	return nil
}

// DisplayRunSummary prints the final run table and environment info.
func (s *SimpleUI) DisplayRunSummary(ctx context.Context, summary m.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderRoundTable(summary.Totals))

	if summary.BashVersion != "" {
		s.printf("bash:  %s\n", summary.BashVersion)
	}

	if summary.PosixVersion != "" {
		s.printf("posix: %s\n", summary.PosixVersion)
	}

	if summary.ReapedProcs > 0 {
		s.printf("Reaped %d orphaned process(es)\n", summary.ReapedProcs)
	}

	return nil
}

func renderRoundTable(summary m.RoundSummary) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Verdict", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	rows := []struct {
		label string
		count int
	}{
		{"Equivalent", summary.Equivalent},
		{"Divergent", summary.Divergent},
		{"Timeout", summary.Timeouts},
		{"Crash", summary.Crashes},
		{"TransformError", summary.TransformErrors},
		{"Filtered", summary.Filtered},
	}

	for _, row := range rows {
		table.Append([]string{row.label, fmt.Sprintf("%d", row.count)})
	}

	table.SetFooter([]string{"Total", fmt.Sprintf("%d", summary.Total)})
	table.Render()

	return tableBuffer.String()
}

func verdictLabel(verdict m.Verdict) string {
	switch verdict {
	case m.VerdictEquivalent:
		return equivalentStyle.Render(string(verdict))
	case m.VerdictDivergent:
		return divergentStyle.Render(string(verdict))
	case m.VerdictTimeout:
		return timeoutStyle.Render(string(verdict))
	case m.VerdictCrash:
		return crashStyle.Render(string(verdict))
	case m.VerdictTransformError:
		return errorStyle.Render(string(verdict))
	}

	return string(verdict)
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
