// Package model defines the data structures for differential shell testing.
package model

import "sort"

// Feature names a Bash-specific syntax capability targeted by a rewriter.
// Features are immutable identifiers used as set keys.
type Feature string

const (
	// FeatureProcessSubstitution covers <(cmd) and >(cmd) constructs.
	FeatureProcessSubstitution Feature = "ProcessSubstitution"
	// FeatureHereString covers the <<< redirect.
	FeatureHereString Feature = "HereString"
	// FeatureConditionalExpression covers [[ ... ]] test commands.
	FeatureConditionalExpression Feature = "ConditionalExpression"
	// FeatureStderrPipe covers the |& pipe operator.
	FeatureStderrPipe Feature = "StderrPipe"
	// FeatureBraceRange covers numeric {a..b} brace expansions.
	FeatureBraceRange Feature = "BraceRange"
	// FeatureFunctionKeyword covers the `function name { ... }` definition form.
	FeatureFunctionKeyword Feature = "FunctionKeyword"
	// FeatureArray covers indexed array declarations, subscripts and expansions.
	FeatureArray Feature = "Array"
	// FeatureArithmeticExpansion covers standalone (( ... )) commands and the
	// bash-only operators inside $(( ... )).
	FeatureArithmeticExpansion Feature = "ArithmeticExpansion"
	// FeatureVariableAssignment covers += appends and declare -i declarations.
	FeatureVariableAssignment Feature = "VariableAssignment"
)

// AllFeatures returns every feature the rewriter catalog knows about.
func AllFeatures() []Feature {
	return []Feature{
		FeatureProcessSubstitution,
		FeatureHereString,
		FeatureConditionalExpression,
		FeatureStderrPipe,
		FeatureBraceRange,
		FeatureFunctionKeyword,
		FeatureArray,
		FeatureArithmeticExpansion,
		FeatureVariableAssignment,
	}
}

// FeatureSet is a set of features, used to track rewrite provenance.
type FeatureSet map[Feature]struct{}

// NewFeatureSet builds a set from the given features.
func NewFeatureSet(features ...Feature) FeatureSet {
	set := make(FeatureSet, len(features))
	for _, f := range features {
		set.Add(f)
	}

	return set
}

// Add inserts a feature into the set.
func (s FeatureSet) Add(f Feature) {
	s[f] = struct{}{}
}

// Has reports whether the feature is in the set.
func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

// Names returns the features as sorted strings for stable output.
func (s FeatureSet) Names() []string {
	names := make([]string, 0, len(s))
	for f := range s {
		names = append(names, string(f))
	}

	sort.Strings(names)

	return names
}
