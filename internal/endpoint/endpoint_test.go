package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNormalizesLoopbackAliases(t *testing.T) {
	for _, raw := range []string{
		"http://localhost:8000",
		"localhost:8000",
		"http://0.0.0.0:8000/",
		"http://[::1]:8000",
		"http://127.0.0.1:8000",
	} {
		t.Run(raw, func(t *testing.T) {
			base, err := Parse(raw)
			require.NoError(t, err)
			require.Equal(t, "http://127.0.0.1:8000", base.String())
			require.True(t, base.Secure())
		})
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)

	_, err = Parse("ftp://example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "scheme")

	_, err = Parse("http://")
	require.Error(t, err)
}

func TestAPIJoinsPaths(t *testing.T) {
	base := MustParse("https://interviews.example.com/portal/")
	require.Equal(t, "https://interviews.example.com/portal/api/interview/setup", base.API("api", "interview", "setup"))
	require.Equal(t, "https://interviews.example.com/portal/api/interview/abc/results", base.API("api/interview", "abc", "results"))
}

func TestWebSocketRewritesWildcardHost(t *testing.T) {
	base := MustParse("http://localhost:8000")

	got, err := base.WebSocket("ws://0.0.0.0:8000/ws/interview/s1", "s1")
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:8000/ws/interview/s1", got)
}

func TestWebSocketKeepsRemoteHost(t *testing.T) {
	base := MustParse("https://api.example.com")

	got, err := base.WebSocket("wss://stream.example.com/ws/interview/s1", "s1")
	require.NoError(t, err)
	require.Equal(t, "wss://stream.example.com/ws/interview/s1", got)
}

func TestWebSocketUpgradesSchemeBehindTLSOrigin(t *testing.T) {
	base := MustParse("https://api.example.com")

	got, err := base.WebSocket("ws://0.0.0.0:8000/ws/interview/s1", "s1")
	require.NoError(t, err)
	require.Equal(t, "wss://api.example.com/ws/interview/s1", got)
}

func TestWebSocketDerivesEndpointWhenEmpty(t *testing.T) {
	base := MustParse("https://api.example.com")

	got, err := base.WebSocket("", "abc-123")
	require.NoError(t, err)
	require.Equal(t, "wss://api.example.com/ws/interview/abc-123", got)

	_, err = base.WebSocket("", "")
	require.Error(t, err)
}

func TestWebSocketResolvesRelativeAndHTTPEndpoints(t *testing.T) {
	base := MustParse("http://127.0.0.1:8000")

	got, err := base.WebSocket("/ws/interview/s9", "s9")
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:8000/ws/interview/s9", got)

	got, err = base.WebSocket("http://localhost:8000/ws/interview/s9", "s9")
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:8000/ws/interview/s9", got)

	_, err = base.WebSocket("gopher://x/y", "s9")
	require.Error(t, err)
}

func TestMediaResolvesRelativeReferences(t *testing.T) {
	base := MustParse("http://localhost:8000")

	require.Equal(t, "http://127.0.0.1:8000/media/video/s1/q1.mp4", base.Media("/media/video/s1/q1.mp4"))
	require.Equal(t, "https://cdn.example.com/v.mp4", base.Media("https://cdn.example.com/v.mp4"))
	require.Equal(t, "", base.Media(""))
}

func TestSecureRequiresTLSForRemoteHosts(t *testing.T) {
	require.False(t, MustParse("http://interviews.example.com").Secure())
	require.True(t, MustParse("https://interviews.example.com").Secure())
	require.False(t, Base{}.Secure())
}

func TestIsLoopback(t *testing.T) {
	require.True(t, IsLoopback("localhost"))
	require.True(t, IsLoopback("127.0.0.2"))
	require.True(t, IsLoopback("[::1]"))
	require.True(t, IsLoopback("0.0.0.0"))
	require.False(t, IsLoopback("10.0.0.5"))
	require.False(t, IsLoopback("example.com"))
}
