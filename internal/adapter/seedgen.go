package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// SeedGenAdapter abstracts invoking an external seed generator so fresh
// scripts can be produced between rounds.
type SeedGenAdapter interface {
	// Generate asks the generator to write count new seed scripts into
	// outDir for the given round. Returns the generator's combined output.
	Generate(ctx context.Context, outDir m.Path, count, round int) (string, error)
}

// LocalSeedGenAdapter runs a user-supplied generator command. The generator
// is called as: <command> <outDir> <count> <round>.
type LocalSeedGenAdapter struct {
	command string
	timeout time.Duration
}

// NewLocalSeedGenAdapter constructs a LocalSeedGenAdapter with default 60s timeout.
func NewLocalSeedGenAdapter(command string) *LocalSeedGenAdapter {
	return &LocalSeedGenAdapter{
		command: command,
		timeout: 60 * time.Second,
	}
}

// Generate runs the generator command.
func (a *LocalSeedGenAdapter) Generate(ctx context.Context, outDir m.Path, count, round int) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.command, string(outDir), strconv.Itoa(count), strconv.Itoa(round))

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String() + stderr.String()

	if err != nil {
		return output, fmt.Errorf("seed generator %s: %w", a.command, err)
	}

	return output, nil
}
