package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLogPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)
	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(stateHome, "parley", "log.jsonl"), path)

	t.Setenv("XDG_STATE_HOME", "")
	path, err = resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "parley", "log.jsonl"), path)
}

func TestNewWritesRunScopedRecords(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv(EnvLevel, "")

	rt, err := New("run-123")
	require.NoError(t, err)
	rt.Logger.Info("question presented", "index", 2)
	rt.Logger.Debug("websocket frame")
	require.NoError(t, rt.Close())

	contents, err := os.ReadFile(rt.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"question presented"`)
	require.Contains(t, string(contents), `"index":2`)
	require.Contains(t, string(contents), `"run_id":"run-123"`)
	require.Contains(t, string(contents), `"pid":`)
	require.NotContains(t, string(contents), "websocket frame")

	info, err := os.Stat(rt.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRotateKeepsOneGeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	require.NoError(t, rotate(path, 10), "missing log is fine")

	require.NoError(t, os.WriteFile(path, []byte("short\n"), 0o600))
	require.NoError(t, rotate(path, 10))
	_, err := os.Stat(path + ".1")
	require.ErrorIs(t, err, os.ErrNotExist)

	big := bytes.Repeat([]byte("x"), 16)
	require.NoError(t, os.WriteFile(path, big, 0o600))
	require.NoError(t, rotate(path, 10))

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	require.Equal(t, big, rotated)
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLevelFromEnv(t *testing.T) {
	for value, want := range map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info+2":  slog.LevelInfo + 2,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	} {
		t.Setenv(EnvLevel, value)
		require.Equal(t, want, levelFromEnv(), value)
	}
}
