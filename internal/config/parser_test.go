package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	input := `
{
  // local backend
  "api": {"base_url": "http://localhost:8000", "timeout_ms": 5000},
  "interview": {"question_count": 3, "max_answer_seconds": 45},
  "audio": {"backend": "pulse", "input": "Elgato"},
  "media": {"camera": true, "camera_device": "/dev/video2"},
  "display": {"player_cmd": "mpv --really-quiet", "sound_enable": false},
  "results": {"format": "json", "archive": false},
}
`

	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	require.Equal(t, 5000, cfg.API.TimeoutMS)
	require.Equal(t, 3, cfg.Interview.QuestionCount)
	require.Equal(t, 45, cfg.Interview.MaxAnswerSeconds)
	require.Equal(t, "pulse", cfg.Audio.Backend)
	require.Equal(t, "Elgato", cfg.Audio.Input)
	require.True(t, cfg.Media.Camera)
	require.Equal(t, "/dev/video2", cfg.Media.CameraDevice)
	require.Equal(t, []string{"mpv", "--really-quiet"}, cfg.Display.PlayerCmd.Argv)
	require.False(t, cfg.Display.SoundEnable)
	require.Equal(t, "json", cfg.Results.Format)
	require.False(t, cfg.Results.Archive)
}

func TestParseEmptyUsesBase(t *testing.T) {
	cfg, _, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse(`{"avatar": {"voice": "alloy"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseRejectsNonObject(t *testing.T) {
	_, _, err := Parse(`base_url = "http://x"`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestParseLineNumberOnError(t *testing.T) {
	_, _, err := Parse("{\n\n  \"api\": nope\n}", Default())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "line 3"), "expected line number in error, got %v", err)
}
