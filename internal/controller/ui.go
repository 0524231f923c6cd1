// Package controller provides output adapters for displaying differential
// testing results.
package controller

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeRun StartMode = iota
	ModeTransform
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// WithRunMode sets the UI to differential run mode.
func WithRunMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
	}
}

// WithTransformMode sets the UI to transform-only mode.
func WithTransformMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeTransform
	}
}

// NewUI picks the interactive TUI when stdout is a terminal and the plain
// printer otherwise.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// UI defines the interface for displaying differential run progress.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayRunInfo(ctx context.Context, seeds, workers, round int)
	DisplaySeedStarted(ctx context.Context, seed m.Seed)
	DisplaySeedResult(ctx context.Context, report m.SeedReport)
	DisplayRoundSummary(ctx context.Context, summary m.RoundSummary) error
	DisplayRunSummary(ctx context.Context, summary m.RunSummary) error
}
