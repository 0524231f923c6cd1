package model

// Patch is a byte-range replacement candidate over source text. The interval
// is half-open [Start, End); Start == End marks a pure insertion point.
type Patch struct {
	Start       int
	End         int
	Replacement string
}

// IsInsertion reports whether the patch inserts text without replacing any.
func (p Patch) IsInsertion() bool {
	return p.Start == p.End
}

// SameInterval reports whether two patches cover the identical byte range.
func (p Patch) SameInterval(other Patch) bool {
	return p.Start == other.Start && p.End == other.End
}

// ContainedIn reports whether p is swallowed by other: either p is an
// insertion point strictly inside other's interval, or p is a proper
// sub-interval of other. Identical intervals are not containment.
func (p Patch) ContainedIn(other Patch) bool {
	if p.SameInterval(other) {
		return false
	}

	if p.IsInsertion() {
		return other.Start < p.Start && p.Start < other.End
	}

	return other.Start <= p.Start && p.End <= other.End
}

// Overlaps reports whether two non-insertion patches share any bytes.
func (p Patch) Overlaps(other Patch) bool {
	if p.IsInsertion() || other.IsInsertion() {
		return false
	}

	return p.Start < other.End && other.Start < p.End
}
