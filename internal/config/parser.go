package config

import (
	"errors"
	"strings"
)

// Parse overlays JSONC content onto base and validates the result. Blank
// content validates base unchanged.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	var warnings []Warning

	if trimmed := strings.TrimSpace(content); trimmed != "" {
		if !strings.HasPrefix(trimmed, "{") {
			return Config{}, nil, errors.New("config must be a JSONC object")
		}
		payload, err := decodeOverlay(content)
		if err != nil {
			return Config{}, nil, err
		}
		if warnings, err = payload.applyTo(&cfg); err != nil {
			return Config{}, nil, err
		}
	}

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}
