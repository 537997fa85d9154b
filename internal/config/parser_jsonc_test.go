package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJSONCRejectsInvalidPlayerCommand(t *testing.T) {
	_, _, err := Parse(`{"display":{"player_cmd":"unterminated ' quote"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid display.player_cmd")
}

func TestParseJSONCTrimsAndLowercasesEnums(t *testing.T) {
	cfg, _, err := Parse(`{
  "audio": {"backend": " PortAudio "},
  "results": {"format": " YAML "},
  "display": {"desktop_app_name": "  parley-dev  ", "notify": true}
}`, Default())
	require.NoError(t, err)
	require.Equal(t, "portaudio", cfg.Audio.Backend)
	require.Equal(t, "yaml", cfg.Results.Format)
	require.Equal(t, "parley-dev", cfg.Display.DesktopAppName)
	require.True(t, cfg.Display.Notify)
}

func TestParseJSONCDurationReplacesDefaultQuestionCount(t *testing.T) {
	cfg, _, err := Parse(`{"interview": {"duration_minutes": 10}}`, Default())
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Interview.QuestionCount)
	require.Equal(t, 10, cfg.Interview.DurationMinutes)

	_, _, err = Parse(`{"interview": {"duration_minutes": 10, "question_count": 4}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "mutually exclusive")
}

func TestParseJSONCPreviewWithoutCameraWarns(t *testing.T) {
	_, warnings, err := Parse(`{"media": {"preview": true}}`, Default())
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	require.Contains(t, warnings[0].Message, "media.preview")
}

func TestParseJSONCRejectsTrailingDocument(t *testing.T) {
	_, _, err := Parse(`{"results":{"archive":false}}
{"results":{"archive":true}}`, Default())
	require.ErrorContains(t, err, "multiple JSON values are not allowed")
}

func TestParseBlankContentValidatesBase(t *testing.T) {
	base := Default()
	base.API.BaseURL = "ftp://nope"
	_, _, err := Parse("  \n", base)
	require.ErrorContains(t, err, "api.base_url")
}

func TestParseJSONCTypeErrorIncludesLocation(t *testing.T) {
	_, _, err := Parse(`{
  "api": {"timeout_ms": "fast"}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line")
	require.Contains(t, err.Error(), "column")
}
