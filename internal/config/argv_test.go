package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	t.Setenv("PARLEY_TEST_PLAYER", "/opt/mpv/bin/mpv")

	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "   ", want: nil},
		{name: "comment", input: "# mpv --fs", want: nil},
		{name: "words", input: "mpv --really-quiet --fs", want: []string{"mpv", "--really-quiet", "--fs"}},
		{name: "double quoted title", input: `mpv --title="parley question" {url}`, want: []string{"mpv", "--title=parley question", "{url}"}},
		{name: "empty quoted arg kept", input: `player '' {url}`, want: []string{"player", "", "{url}"}},
		{name: "escaped space", input: `vlc My\ Clip`, want: []string{"vlc", "My Clip"}},
		{name: "env in bare word", input: `$PARLEY_TEST_PLAYER --fs`, want: []string{"/opt/mpv/bin/mpv", "--fs"}},
		{name: "env in double quotes", input: `"${PARLEY_TEST_PLAYER}" --fs`, want: []string{"/opt/mpv/bin/mpv", "--fs"}},
		{name: "single quotes are literal", input: `echo '$PARLEY_TEST_PLAYER'`, want: []string{"echo", "$PARLEY_TEST_PLAYER"}},
		{name: "unterminated double quote", input: `mpv "--title`, wantErr: "unterminated quote"},
		{name: "unterminated single quote", input: `mpv '--title`, wantErr: "unterminated quote"},
		{name: "trailing backslash", input: `mpv --fs\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExpandURL(t *testing.T) {
	url := "http://127.0.0.1:8000/videos/q1.mp4"

	require.Equal(t,
		[]string{"mpv", "--fs", url},
		ExpandURL([]string{"mpv", "--fs"}, url),
	)
	require.Equal(t,
		[]string{"vlc", "--play-and-exit", "input=" + url, "--x"},
		ExpandURL([]string{"vlc", "--play-and-exit", "input={url}", "--x"}, url),
	)
	require.Empty(t, ExpandURL(nil, url))

	argv := []string{"mpv", "{url}"}
	_ = ExpandURL(argv, url)
	require.Equal(t, "{url}", argv[1])
}
