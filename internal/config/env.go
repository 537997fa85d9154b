package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides.
const (
	EnvAPIURL       = "PARLEY_API_URL"
	EnvAudioBackend = "PARLEY_AUDIO_BACKEND"
	EnvAudioInput   = "PARLEY_AUDIO_INPUT"
	EnvCamera       = "PARLEY_CAMERA"
)

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment overrides onto cfg.
func ApplyEnv(cfg *Config) []Warning {
	var warnings []Warning

	if value := strings.TrimSpace(os.Getenv(EnvAPIURL)); value != "" {
		cfg.API.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvAudioBackend)); value != "" {
		cfg.Audio.Backend = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvAudioInput)); value != "" {
		cfg.Audio.Input = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvCamera)); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s=%q is not a boolean; ignoring", EnvCamera, value)})
		} else {
			cfg.Media.Camera = enabled
		}
	}
	return warnings
}
