package rewriters

import (
	"errors"
	"testing"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

func TestApply_NoPatches(t *testing.T) {
	src := []byte("echo hi")

	out, err := Apply(src, nil)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if string(out) != "echo hi" {
		t.Fatalf("expected src unchanged, got %q", out)
	}
}

func TestApply_SingleReplacement(t *testing.T) {
	src := []byte("ls |& grep x")

	out, err := Apply(src, []m.Patch{{Start: 3, End: 5, Replacement: "2>&1 |"}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if string(out) != "ls 2>&1 | grep x" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestApply_MultiplePatchesOffsetsStayValid(t *testing.T) {
	// Replacements with different lengths than their intervals must not
	// shift each other's coordinates.
	src := []byte("aa bb cc")
	patches := []m.Patch{
		{Start: 0, End: 2, Replacement: "XXXX"},
		{Start: 3, End: 5, Replacement: "Y"},
		{Start: 6, End: 8, Replacement: "ZZZZZZ"},
	}

	out, err := Apply(src, patches)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if string(out) != "XXXX Y ZZZZZZ" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestApply_DuplicateIntervalKeepsFirst(t *testing.T) {
	src := []byte("abcdef")
	patches := []m.Patch{
		{Start: 1, End: 3, Replacement: "FIRST"},
		{Start: 1, End: 3, Replacement: "SECOND"},
	}

	out, err := Apply(src, patches)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if string(out) != "aFIRSTdef" {
		t.Fatalf("expected first-registered patch to win, got %q", out)
	}
}

func TestApply_ContainedPatchDropped(t *testing.T) {
	// An inner match nested inside an outer match collapses into the outer
	// rewrite alone.
	src := []byte("0123456789")
	patches := []m.Patch{
		{Start: 4, End: 6, Replacement: "inner"},
		{Start: 2, End: 8, Replacement: "OUTER"},
	}

	out, err := Apply(src, patches)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if string(out) != "01OUTER89" {
		t.Fatalf("expected contained patch dropped, got %q", out)
	}
}

func TestApply_InsertionInsideIntervalDropped(t *testing.T) {
	src := []byte("0123456789")
	patches := []m.Patch{
		{Start: 5, End: 5, Replacement: "insert"},
		{Start: 2, End: 8, Replacement: "OUTER"},
	}

	out, err := Apply(src, patches)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if string(out) != "01OUTER89" {
		t.Fatalf("expected interior insertion dropped, got %q", out)
	}
}

func TestApply_InsertionAtBoundarySurvives(t *testing.T) {
	// An insertion at a replaced interval's start is a statement prefix and
	// must land in front of the replacement text.
	src := []byte("0123456789")
	patches := []m.Patch{
		{Start: 2, End: 2, Replacement: "PRE\n"},
		{Start: 2, End: 8, Replacement: "BODY"},
		{Start: 8, End: 8, Replacement: "\nPOST"},
	}

	out, err := Apply(src, patches)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if string(out) != "01PRE\nBODY\nPOST89" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestApply_PartialOverlapIsConflict(t *testing.T) {
	src := []byte("0123456789")
	patches := []m.Patch{
		{Start: 2, End: 6, Replacement: "A"},
		{Start: 4, End: 8, Replacement: "B"},
	}

	_, err := Apply(src, patches)
	if !errors.Is(err, ErrPatchConflict) {
		t.Fatalf("expected ErrPatchConflict, got %v", err)
	}
}

func TestApply_OutOfBoundsPatch(t *testing.T) {
	_, err := Apply([]byte("short"), []m.Patch{{Start: 2, End: 99, Replacement: "x"}})
	if err == nil {
		t.Fatal("expected error for out-of-bounds patch")
	}
}

func TestPatch_ContainedIn(t *testing.T) {
	outer := m.Patch{Start: 2, End: 8}

	tests := []struct {
		name string
		p    m.Patch
		want bool
	}{
		{"proper sub-interval", m.Patch{Start: 3, End: 7}, true},
		{"shares start", m.Patch{Start: 2, End: 5}, true},
		{"shares end", m.Patch{Start: 5, End: 8}, true},
		{"identical interval", m.Patch{Start: 2, End: 8}, false},
		{"interior insertion", m.Patch{Start: 4, End: 4}, true},
		{"insertion at start", m.Patch{Start: 2, End: 2}, false},
		{"insertion at end", m.Patch{Start: 8, End: 8}, false},
		{"disjoint", m.Patch{Start: 9, End: 12}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.ContainedIn(outer); got != tt.want {
				t.Fatalf("ContainedIn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransformError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &TransformError{Rewriter: "array", Reason: "patch conflict", Err: inner}

	if !errors.Is(err, inner) {
		t.Fatal("expected TransformError to unwrap its cause")
	}

	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}
