package agent

import (
	"os"

	"gopkg.in/yaml.v3"

	apperrors "machtms/internal/errors"
)

// Override replaces an agent's role or instruction list. Empty fields
// keep the built-in values.
type Override struct {
	Role         string   `yaml:"role"`
	Instructions []string `yaml:"instructions"`
}

// Overrides is the configs/agents.yaml document, keyed by agent name.
type Overrides struct {
	Agents map[string]Override `yaml:"agents"`
}

// LoadOverrides reads the overrides file. A missing file is not an
// error; the built-in instructions apply.
func LoadOverrides(path string) (Overrides, error) {
	var overrides Overrides
	if path == "" {
		return overrides, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overrides, nil
		}
		return overrides, apperrors.Wrap(apperrors.CodeInitializationFailure, err,
			"read agent overrides")
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return overrides, apperrors.Wrap(apperrors.CodeInitializationFailure, err,
			"parse agent overrides")
	}
	return overrides, nil
}

func (o Overrides) role(name, fallback string) string {
	if override, ok := o.Agents[name]; ok && override.Role != "" {
		return override.Role
	}
	return fallback
}

func (o Overrides) instructions(name string, fallback []string) []string {
	if override, ok := o.Agents[name]; ok && len(override.Instructions) > 0 {
		return override.Instructions
	}
	return fallback
}
