package model

// Verdict is the classified outcome of comparing two interpreter runs of the
// same seed. Derived once, never mutated.
type Verdict string

const (
	// VerdictEquivalent means stdout, stderr and exit status matched byte for byte.
	VerdictEquivalent Verdict = "Equivalent"
	// VerdictDivergent means the observable outputs differ.
	VerdictDivergent Verdict = "Divergent"
	// VerdictTimeout means at least one run hit the wall-clock limit.
	VerdictTimeout Verdict = "Timeout"
	// VerdictCrash means at least one interpreter was terminated by a signal.
	VerdictCrash Verdict = "Crash"
	// VerdictTransformError means the seed could not be rewritten at all.
	VerdictTransformError Verdict = "TransformError"
)
