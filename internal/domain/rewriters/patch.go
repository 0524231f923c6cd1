// Package rewriters contains the per-feature Bash-to-POSIX rewriters and the
// shared patch application logic every rewriter builds on.
package rewriters

import (
	"errors"
	"fmt"
	"sort"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// ErrPatchConflict reports two non-identical, non-nested patches that
// partially overlap. There is no safe way to order such replacements.
var ErrPatchConflict = errors.New("patches overlap without containment")

// TransformError means a seed could not be rewritten: the input does not
// parse as shell syntax, or a rewriter produced conflicting patches. The
// chain aborts for that seed only.
type TransformError struct {
	Rewriter string
	Reason   string
	Err      error
}

func (e *TransformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Rewriter, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Rewriter, e.Reason)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Apply resolves conflicts among candidate patches and splices the survivors
// into src. Duplicate intervals keep the first-registered patch; patches
// contained in a different patch are dropped, so nested matches collapse into
// the single outermost rewrite. Surviving patches are applied right to left,
// which keeps original-text offsets valid throughout.
func Apply(src []byte, patches []m.Patch) ([]byte, error) {
	if len(patches) == 0 {
		return src, nil
	}

	kept := filterContained(patches)

	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			if kept[i].Overlaps(kept[j]) {
				return nil, fmt.Errorf("patch [%d,%d) vs [%d,%d): %w",
					kept[i].Start, kept[i].End, kept[j].Start, kept[j].End, ErrPatchConflict)
			}
		}
	}

	// Replacements before insertions at the same offset, so an insertion at a
	// replaced interval's start ends up in front of the replacement text.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Start != kept[j].Start {
			return kept[i].Start > kept[j].Start
		}

		return kept[i].End > kept[j].End
	})

	out := src
	for _, p := range kept {
		if p.Start < 0 || p.End > len(src) || p.End < p.Start {
			return nil, fmt.Errorf("patch [%d,%d) out of bounds for %d bytes", p.Start, p.End, len(src))
		}

		spliced := make([]byte, 0, len(out)-(p.End-p.Start)+len(p.Replacement))
		spliced = append(spliced, out[:p.Start]...)
		spliced = append(spliced, p.Replacement...)
		spliced = append(spliced, out[p.End:]...)
		out = spliced
	}

	return out, nil
}

// filterContained drops duplicates (later registration loses) and patches
// swallowed by a different patch. Containment is checked against all
// candidates, not survivors, mirroring how independent matches of nested
// constructs are discovered.
func filterContained(patches []m.Patch) []m.Patch {
	kept := make([]m.Patch, 0, len(patches))

	for i, p := range patches {
		contained := false

		for j, other := range patches {
			if i == j {
				continue
			}

			if p.SameInterval(other) {
				if i > j {
					contained = true
					break
				}

				continue
			}

			if p.ContainedIn(other) {
				contained = true
				break
			}
		}

		if !contained {
			kept = append(kept, p)
		}
	}

	return kept
}
