package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath points at a config file when --config is not given.
const EnvConfigPath = "PARLEY_CONFIG"

// ResolvePath picks the config file: --config, then $PARLEY_CONFIG, then
// $XDG_CONFIG_HOME/parley/config.jsonc, then ~/.config/parley/config.jsonc.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(EnvConfigPath)} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return expandHome(candidate)
		}
	}

	configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "parley", "config.jsonc"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
