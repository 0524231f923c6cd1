package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// SeedFSAdapter abstracts seed corpus access so the pipeline can be tested
// without touching the disk.
type SeedFSAdapter interface {
	// ListSeeds returns the shell scripts under root, sorted by path.
	ListSeeds(root m.Path) ([]m.Path, error)

	// ReadSeed loads a seed script.
	ReadSeed(path m.Path) ([]byte, error)

	// WriteRewritten stores the rewritten form of a seed next to it, or
	// under dir when given, named <stem>_posix.sh.
	WriteRewritten(seed m.Path, dir m.Path, content []byte) (m.Path, error)

	// CreateScratchDir creates a private working directory for one
	// execution pair.
	CreateScratchDir(pattern string) (m.Path, error)

	// RemoveAll removes a directory and all its contents.
	RemoveAll(path m.Path) error

	// EnsureDir creates a directory (and parents) if missing.
	EnsureDir(path m.Path) error
}

// LocalSeedFSAdapter is the os-backed implementation.
type LocalSeedFSAdapter struct{}

// NewLocalSeedFSAdapter constructs a LocalSeedFSAdapter.
func NewLocalSeedFSAdapter() *LocalSeedFSAdapter {
	return &LocalSeedFSAdapter{}
}

// ListSeeds walks root and collects .sh files, skipping rewritten outputs
// from earlier runs.
func (a *LocalSeedFSAdapter) ListSeeds(root m.Path) ([]m.Path, error) {
	var seeds []m.Path

	err := filepath.Walk(string(root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || filepath.Ext(path) != ".sh" {
			return nil
		}

		if strings.HasSuffix(path, "_posix.sh") {
			return nil
		}

		seeds = append(seeds, m.Path(path))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk seeds under %s: %w", root, err)
	}

	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })

	return seeds, nil
}

// ReadSeed loads file contents from disk.
func (a *LocalSeedFSAdapter) ReadSeed(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteRewritten stores the rewritten script as <stem>_posix.sh.
func (a *LocalSeedFSAdapter) WriteRewritten(seed m.Path, dir m.Path, content []byte) (m.Path, error) {
	base := filepath.Base(string(seed))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	targetDir := string(dir)
	if targetDir == "" {
		targetDir = filepath.Dir(string(seed))
	}

	target := filepath.Join(targetDir, stem+"_posix.sh")

	if err := os.WriteFile(target, content, 0o600); err != nil {
		return "", fmt.Errorf("write rewritten script: %w", err)
	}

	return m.Path(target), nil
}

// CreateScratchDir creates a private working directory.
func (a *LocalSeedFSAdapter) CreateScratchDir(pattern string) (m.Path, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	return m.Path(dir), nil
}

// RemoveAll removes a directory and all its contents.
func (a *LocalSeedFSAdapter) RemoveAll(path m.Path) error {
	return os.RemoveAll(string(path))
}

// EnsureDir creates a directory if missing.
func (a *LocalSeedFSAdapter) EnsureDir(path m.Path) error {
	return os.MkdirAll(string(path), 0o750)
}
