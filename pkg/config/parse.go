package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseSearchYAML parses a SearchConfig from YAML (or JSON) bytes, applies
// defaults and validates it. This is used for APIs where the config is provided
// as payload.
func ParseSearchYAML(data []byte) (*SearchConfig, error) {
	var cfg SearchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse search config yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := ValidateSearch(&cfg); err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}
	return &cfg, nil
}

// ParseSearchYAMLString parses a SearchConfig from a YAML string.
func ParseSearchYAMLString(yamlText string) (*SearchConfig, error) {
	return ParseSearchYAML([]byte(yamlText))
}

// ParseServerYAML parses a ServerConfig on top of the defaults.
func ParseServerYAML(data []byte) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config yaml: %w", err)
	}
	if err := ValidateServer(&cfg); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return &cfg, nil
}
