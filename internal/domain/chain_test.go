package domain

import (
	"errors"
	"strings"
	"testing"

	"shmorph.dev/pkg/shmorph/internal/domain/rewriters"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

func TestChain_PosixInputUnchanged(t *testing.T) {
	src := "#!/bin/sh\necho hello\nls | grep foo\n"

	result, err := NewDefaultChain(nil).Transform([]byte(src))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if string(result.Script) != src {
		t.Fatalf("expected portable input unchanged, got %q", result.Script)
	}

	if len(result.TransformedFeatures) != 0 {
		t.Fatalf("expected no transformed features, got %v", result.TransformedFeatures.Names())
	}

	if result.Rounds != 1 {
		t.Fatalf("expected a single round for stable input, got %d", result.Rounds)
	}
}

func TestChain_SinglePassRewrite(t *testing.T) {
	result, err := NewDefaultChain(nil).Transform([]byte("ls |& grep foo\n"))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if string(result.Script) != "ls 2>&1 | grep foo\n" {
		t.Fatalf("unexpected output: %q", result.Script)
	}

	if !result.TransformedFeatures.Has(m.FeatureStderrPipe) {
		t.Fatal("expected StderrPipe feature to be recorded")
	}
}

func TestChain_NestedProcessSubstitutionResolved(t *testing.T) {
	src := "diff <(cat <(echo a)) <(echo b)\n"

	result, err := NewDefaultChain(nil).Transform([]byte(src))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	out := string(result.Script)

	if strings.Contains(out, "<(") {
		t.Fatalf("expected all process substitutions resolved, got:\n%s", out)
	}

	if !result.TransformedFeatures.Has(m.FeatureProcessSubstitution) {
		t.Fatal("expected ProcessSubstitution feature to be recorded")
	}

	// The inner substitution only becomes reachable after the outer rewrite,
	// so a single pass cannot finish this input.
	if result.Rounds < 2 {
		t.Fatalf("expected at least two rounds, got %d", result.Rounds)
	}
}

func TestChain_NestedProducerEmittedOnce(t *testing.T) {
	// The inner producer has a side effect; a second copy of its block in the
	// rewritten script would run it twice.
	src := "cat <(cat <(echo x; echo tick >> cnt))\n"

	result, err := NewDefaultChain(nil).Transform([]byte(src))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	out := string(result.Script)

	if strings.Contains(out, "<(") {
		t.Fatalf("expected all process substitutions resolved, got:\n%s", out)
	}

	if got := strings.Count(out, "echo tick >> cnt"); got != 1 {
		t.Fatalf("expected the inner producer once, got %d occurrences in:\n%s", got, out)
	}

	if got := strings.Count(out, "mktemp"); got != 2 {
		t.Fatalf("expected one temp file per substitution, got %d in:\n%s", got, out)
	}
}

func TestChain_FeatureNarrowing(t *testing.T) {
	src := "ls |& grep x\nif [[ $a == b ]]; then echo y; fi\n"

	chain := NewDefaultChain([]m.Feature{m.FeatureStderrPipe})

	result, err := chain.Transform([]byte(src))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	out := string(result.Script)

	if strings.Contains(out, "|&") {
		t.Fatalf("expected |& rewritten, got:\n%s", out)
	}

	if !strings.Contains(out, "[[") {
		t.Fatalf("expected [[ ]] untouched when its feature is not requested, got:\n%s", out)
	}

	if result.TransformedFeatures.Has(m.FeatureConditionalExpression) {
		t.Fatal("expected no ConditionalExpression feature recorded")
	}
}

func TestChain_InvalidInputIsTransformError(t *testing.T) {
	_, err := NewDefaultChain(nil).Transform([]byte("if then fi (((\n"))
	if err == nil {
		t.Fatal("expected error for unparsable input")
	}

	var terr *rewriters.TransformError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransformError, got %T", err)
	}
}

func TestChain_EmptyInput(t *testing.T) {
	result, err := NewDefaultChain(nil).Transform([]byte(""))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if len(result.Script) != 0 {
		t.Fatalf("expected empty output, got %q", result.Script)
	}
}
