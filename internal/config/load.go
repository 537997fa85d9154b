package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is a resolved config plus the warnings gathered while building it.
// Exists is false when the file was absent and defaults were used.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

func (l *Loaded) warn(message string) {
	l.Warnings = append(l.Warnings, Warning{Message: message})
}

// readFile overlays the file at l.Path onto l.Config. A missing file is a
// warning, not an error.
func (l *Loaded) readFile() error {
	content, err := os.ReadFile(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		l.warn(fmt.Sprintf("config file %q not found; using defaults", l.Path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %q: %w", l.Path, err)
	}

	cfg, warnings, err := Parse(string(content), l.Config)
	if err != nil {
		return fmt.Errorf("parse config %q: %w", l.Path, err)
	}
	l.Config, l.Exists = cfg, true
	l.Warnings = append(l.Warnings, warnings...)
	return nil
}

// Load builds the effective config: defaults, then the file from
// ResolvePath(explicitPath), then PARLEY_* environment overrides. The result
// is validated after the overrides so a bad variable fails like a bad file.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default()}
	if err := loaded.readFile(); err != nil {
		return Loaded{}, err
	}
	loaded.Warnings = append(loaded.Warnings, ApplyEnv(&loaded.Config)...)

	warnings, err := Validate(loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config: %w", err)
	}
	// Parse already reported validation warnings for file-backed configs.
	if !loaded.Exists {
		loaded.Warnings = append(loaded.Warnings, warnings...)
	}
	return loaded, nil
}
