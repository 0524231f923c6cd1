package model

// NoiseRule describes one known-noise pattern confirmed by prior triage.
// Divergent verdicts matching a rule are annotated as filtered, never
// upgraded.
type NoiseRule struct {
	Name string `yaml:"name"`
	// Target selects what the pattern runs against: "stdout", "stderr",
	// "diff" or "seed". Defaults to "diff".
	Target  string `yaml:"target"`
	Pattern string `yaml:"pattern"`
}
