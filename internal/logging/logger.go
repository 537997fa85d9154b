// Package logging writes run-scoped JSONL logs under the XDG state dir.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// EnvLevel selects the log level: debug, info, warn, error, or an offset
// such as "info+2".
const EnvLevel = "PARLEY_LOG_LEVEL"

// maxLogBytes is the size at which log.jsonl is rotated to log.jsonl.1 on
// the next start.
const maxLogBytes = 8 << 20

// Runtime is an open run log.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	RunID  string
	closer io.Closer
}

func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New opens the run log, rotating it first when it has grown past
// maxLogBytes. Every record carries run_id and pid.
func New(runID string) (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create log dir: %w", err)
	}
	if err := rotate(path, maxLogBytes); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: levelFromEnv()})).
		With("pid", os.Getpid())
	if runID != "" {
		logger = logger.With("run_id", runID)
	}
	return Runtime{Logger: logger, Path: path, RunID: runID, closer: f}, nil
}

// rotate keeps a single previous generation.
func rotate(path string, limit int64) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("stat log: %w", err)
	case info.Size() < limit:
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	return nil
}

func levelFromEnv() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(os.Getenv(EnvLevel)))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func resolveLogPath() (string, error) {
	stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve log path: %w", err)
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "parley", "log.jsonl"), nil
}
