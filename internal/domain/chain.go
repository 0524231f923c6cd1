// Package domain contains the core differential testing workflow and logic.
package domain

import (
	"bytes"
	"log/slog"
	"sync"

	"shmorph.dev/pkg/shmorph/internal/domain/rewriters"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

// maxChainRounds bounds the fixpoint iteration so a misbehaving rewriter
// cannot loop forever.
const maxChainRounds = 10

// ChainResult is the outcome of one chain invocation on one seed.
type ChainResult struct {
	Script              []byte
	TransformedFeatures m.FeatureSet
	Rounds              int
}

// Chain applies an ordered list of rewriters to one script, threading a
// RewriteContext through each step. Each rewriter resolves its own patches,
// so one feature's bug cannot corrupt another feature's output. The chain
// repeats full passes until a pass changes nothing: a rewrite may expose
// constructs (such as nested process substitutions surfaced in replacement
// text) that only a later pass can finish.
type Chain struct {
	// Tree-sitter parsers are not safe for concurrent use, so invocations
	// from concurrent workers are serialized. Transforms are brief compared
	// to the interpreter executions they feed.
	mu sync.Mutex

	rewriters []rewriters.Rewriter
}

// NewChain builds a chain over the given rewriters, applied in order. The
// rewriters become owned by this chain and must not be shared with another.
func NewChain(rws []rewriters.Rewriter) *Chain {
	return &Chain{rewriters: rws}
}

// NewDefaultChain builds a chain over the full catalog, optionally narrowed
// to the requested features.
func NewDefaultChain(features []m.Feature) *Chain {
	return NewChain(rewriters.ForFeatures(features))
}

// Transform rewrites src until stable. A rewriter that cannot parse its
// input aborts the chain with a TransformError; the caller records the
// failure for that seed and moves on.
func (c *Chain) Transform(src []byte) (ChainResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc := m.NewRewriteContext()
	result := src

	for round := 1; round <= maxChainRounds; round++ {
		before := result

		for _, rw := range c.rewriters {
			out, err := rw.Rewrite(result, rc)
			if err != nil {
				return ChainResult{}, err
			}

			if !bytes.Equal(out, result) {
				slog.Debug("applied rewriter", "rewriter", rw.Name(), "round", round)
			}

			result = out
		}

		if bytes.Equal(before, result) {
			return ChainResult{
				Script:              result,
				TransformedFeatures: rc.TransformedFeatures,
				Rounds:              round,
			}, nil
		}
	}

	slog.Warn("maximum chain rounds reached, output may retain bash constructs", "rounds", maxChainRounds)

	return ChainResult{
		Script:              result,
		TransformedFeatures: rc.TransformedFeatures,
		Rounds:              maxChainRounds,
	}, nil
}
