package model

import "fmt"

// ArrayInfo records what a rewriter learned about one shell array so later
// expansions of the same array can be rewritten consistently.
type ArrayInfo struct {
	// Length is the number of elements seen at declaration, -1 if unknown.
	Length int
}

// RewriteContext is the mutable state threaded through one chain invocation.
// It is owned by exactly one chain run and must not be shared across
// concurrent runs.
type RewriteContext struct {
	// TransformedFeatures collects the features actually rewritten so far.
	TransformedFeatures FeatureSet

	// Arrays maps array names to what the array rewriter knows about them.
	Arrays map[string]ArrayInfo

	tempCounter int
}

// NewRewriteContext returns an empty context for one chain run.
func NewRewriteContext() *RewriteContext {
	return &RewriteContext{
		TransformedFeatures: NewFeatureSet(),
		Arrays:              map[string]ArrayInfo{},
	}
}

// NextTempVar hands out script-unique temp-file variable names (tmp1, tmp2, ...).
func (rc *RewriteContext) NextTempVar() string {
	rc.tempCounter++
	return fmt.Sprintf("tmp%d", rc.tempCounter)
}
