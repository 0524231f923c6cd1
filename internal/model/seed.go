package model

// Path represents a file system path.
type Path string

// Seed is one raw input script under test. Seeds are immutable and
// identified by file name within their round.
type Seed struct {
	ID    string
	Path  Path
	Round int
}
