package adapter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// LoadNoiseRules reads triaged noise patterns from a YAML file. A missing
// file means no rules, not an error.
func LoadNoiseRules(path m.Path) ([]m.NoiseRule, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read noise rules: %w", err)
	}

	var doc struct {
		Rules []m.NoiseRule `yaml:"rules"`
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse noise rules %s: %w", path, err)
	}

	return doc.Rules, nil
}
