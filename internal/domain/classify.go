package domain

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// Classify derives a verdict from the two execution records of one seed.
// Rule order is strict: timeout beats crash beats output comparison.
func Classify(original, rewritten m.ExecutionRecord) m.Verdict {
	if original.TimedOut || rewritten.TimedOut {
		return m.VerdictTimeout
	}

	if original.Signaled || rewritten.Signaled {
		return m.VerdictCrash
	}

	if bytes.Equal(original.Stdout, rewritten.Stdout) &&
		bytes.Equal(original.Stderr, rewritten.Stderr) &&
		original.ExitCode == rewritten.ExitCode {
		return m.VerdictEquivalent
	}

	return m.VerdictDivergent
}

// Signature computes the dedup signature for a failing seed: verdict,
// rewritten feature set, both exit codes and the head of the output diff.
// Re-runs reproducing the same failure produce the same signature.
func Signature(verdict m.Verdict, features []string, original, rewritten m.ExecutionRecord, diff string) string {
	h := sha256.New()

	fmt.Fprintf(h, "%s|%s|%d|%d|", verdict, strings.Join(features, ","), original.ExitCode, rewritten.ExitCode)

	lines := strings.SplitN(diff, "\n", 9)
	if len(lines) > 8 {
		lines = lines[:8]
	}

	fmt.Fprint(h, strings.Join(lines, "\n"))

	return fmt.Sprintf("%x", h.Sum(nil))
}

// OutputDiff renders a unified diff of the two runs' stdout for the failure
// record.
func OutputDiff(original, rewritten m.ExecutionRecord) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original.Stdout)),
		B:        difflib.SplitLines(string(rewritten.Stdout)),
		FromFile: "original",
		ToFile:   "rewritten",
		Context:  3,
	})
	if err != nil {
		return ""
	}

	return diff
}

// NoiseFilter suppresses divergent verdicts matching previously triaged
// noise patterns (expected nondeterminism such as timestamps). It only
// annotates records as filtered, never upgrades a verdict.
type NoiseFilter struct {
	rules []compiledNoiseRule
}

type compiledNoiseRule struct {
	name    string
	target  string
	pattern *regexp.Regexp
}

// NewNoiseFilter compiles the rule set. An invalid pattern is a
// configuration error and fails the whole filter.
func NewNoiseFilter(rules []m.NoiseRule) (*NoiseFilter, error) {
	compiled := make([]compiledNoiseRule, 0, len(rules))

	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("noise rule %q: %w", rule.Name, err)
		}

		target := rule.Target
		if target == "" {
			target = "diff"
		}

		compiled = append(compiled, compiledNoiseRule{name: rule.Name, target: target, pattern: re})
	}

	return &NoiseFilter{rules: compiled}, nil
}

// Match returns the name of the first rule matching the failure, if any.
func (f *NoiseFilter) Match(rec m.FailureRecord) (string, bool) {
	if f == nil {
		return "", false
	}

	for _, rule := range f.rules {
		var subject string

		switch rule.target {
		case "stdout":
			subject = rec.Original.Stdout + rec.Rewritten.Stdout
		case "stderr":
			subject = rec.Original.Stderr + rec.Rewritten.Stderr
		case "seed":
			subject = rec.OriginalScript
		default:
			subject = rec.Diff
		}

		if rule.pattern.MatchString(subject) {
			return rule.name, true
		}
	}

	return "", false
}
