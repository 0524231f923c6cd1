package rewriters

import (
	m "shmorph.dev/pkg/shmorph/internal/model"
)

// Catalog returns a fresh rewriter set in application order. Cheap textual
// rewrites run first; the temp-file based process substitution rewrite runs
// last so it sees text already free of the simpler constructs.
func Catalog() []Rewriter {
	return []Rewriter{
		NewStderrPipe(),
		NewFunctionKeyword(),
		NewBraceRange(),
		NewHereString(),
		NewConditionalExpression(),
		NewArithmeticExpansion(),
		NewVariableAssignment(),
		NewArray(),
		NewProcessSubstitution(),
	}
}

// ForFeatures filters a fresh catalog down to rewriters covering at least one
// of the requested features. An empty feature list means the full catalog.
func ForFeatures(features []m.Feature) []Rewriter {
	all := Catalog()
	if len(features) == 0 {
		return all
	}

	want := m.NewFeatureSet(features...)

	kept := make([]Rewriter, 0, len(all))

	for _, rw := range all {
		for _, f := range rw.Features() {
			if want.Has(f) {
				kept = append(kept, rw)
				break
			}
		}
	}

	return kept
}
