package indicator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/protocol"
	"github.com/stretchr/testify/require"
)

func newTestConsole(t *testing.T, opts Options) (*Console, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts.Out = &out
	c := NewConsole(opts)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c, &out
}

func TestConsoleRendersInterviewFlow(t *testing.T) {
	c, out := newTestConsole(t, Options{})
	ctx := context.Background()

	c.ShowPhase(ctx, fsm.StateAwaitingGreeting)
	c.PlayVideo(ctx, Video{Kind: VideoGreeting, URL: "http://127.0.0.1:8000/media/video/s/greeting.mp4", Text: "Welcome to your AI Interview."}, nil)
	c.ShowQuestion(ctx, 1, 5, "Tell me about a system you scaled.")
	c.ShowPhase(ctx, fsm.StateListening)
	c.ShowTranscript(ctx, "I scaled a queue", true)
	c.ShowFeedback(ctx, protocol.Evaluation{Score: 8, Feedback: "Clear and specific."})

	got := out.String()
	require.Contains(t, got, "[awaiting_greeting] Waiting for the interviewer…")
	require.Contains(t, got, "Welcome to your AI Interview.")
	require.Contains(t, got, "greeting video: http://127.0.0.1:8000/media/video/s/greeting.mp4")
	require.Contains(t, got, "Question 1 of 5\n  Tell me about a system you scaled.")
	require.Contains(t, got, "[listening]")
	require.Contains(t, got, "You said: I scaled a queue")
	require.Contains(t, got, "Score: 8.0/10\n  Clear and specific.")
}

func TestConsoleFeedbackFallsBackToMarks(t *testing.T) {
	c, out := newTestConsole(t, Options{})
	c.ShowFeedback(context.Background(), protocol.Evaluation{Marks: "7/10"})
	require.Contains(t, out.String(), "Score: 7.0/10")
}

func TestConsoleCollapsesNearDuplicatePartials(t *testing.T) {
	c, out := newTestConsole(t, Options{})
	ctx := context.Background()

	c.ShowTranscript(ctx, "I worked on a distributed cache for payments", false)
	c.ShowTranscript(ctx, "I worked on a distributed cache for payment", false)
	c.ShowTranscript(ctx, "I worked on a distributed cache for payments at scale with Go", false)
	c.ShowTranscript(ctx, "I worked on a distributed cache for payments at scale with Go", true)
	c.ShowTranscript(ctx, "I worked on a distributed cache for payments at scale with Go", true)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "… I worked on a distributed cache for payments")
	require.Contains(t, lines[1], "at scale with Go")
	require.Contains(t, lines[2], "You said:")
}

func TestClearResponseResetsTranscriptState(t *testing.T) {
	c, out := newTestConsole(t, Options{})
	ctx := context.Background()

	c.ShowTranscript(ctx, "same answer", true)
	c.ClearResponse(ctx)
	c.ShowTranscript(ctx, "same answer", true)

	require.Equal(t, 2, strings.Count(out.String(), "You said: same answer"))
}

func TestPlayVideoWithoutPlayerCompletesImmediately(t *testing.T) {
	c, _ := newTestConsole(t, Options{})

	called := 0
	c.PlayVideo(context.Background(), Video{Kind: VideoQuestion, URL: "http://x/q1.mp4"}, func() { called++ })
	require.Equal(t, 1, called)

	c.PlayVideo(context.Background(), Video{Kind: VideoListening, URL: "http://x/listening.mp4"}, func() { called++ })
	require.Equal(t, 1, called, "listening loop never reports completion")
}

func TestPlayVideoRunsPlayerAndReportsCompletion(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "player-args.log")
	t.Setenv("PLAYER_ARGS_FILE", argsFile)
	player := installStub(t, "fake-player", `
printf '%s\n' "$*" >> "${PLAYER_ARGS_FILE}"
`)

	c, _ := newTestConsole(t, Options{PlayerCmd: []string{player, "--fullscreen"}})

	done := make(chan struct{})
	c.PlayVideo(context.Background(), Video{Kind: VideoQuestion, URL: "http://x/q1.mp4"}, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("player completion was not reported")
	}

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--fullscreen http://x/q1.mp4\n", string(data))
}

func TestPlayVideoSubstitutesURLPlaceholder(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "player-args.log")
	t.Setenv("PLAYER_ARGS_FILE", argsFile)
	player := installStub(t, "fake-player", `
printf '%s\n' "$*" >> "${PLAYER_ARGS_FILE}"
`)

	c, _ := newTestConsole(t, Options{PlayerCmd: []string{player, "--input={url}", "--loop=no"}})

	done := make(chan struct{})
	c.PlayVideo(context.Background(), Video{Kind: VideoGreeting, URL: "http://x/g.mp4"}, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("player completion was not reported")
	}

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--input=http://x/g.mp4 --loop=no\n", string(data))
}

func TestPlayVideoMissingPlayerStillCompletes(t *testing.T) {
	c, _ := newTestConsole(t, Options{PlayerCmd: []string{filepath.Join(t.TempDir(), "missing-player")}})

	called := false
	c.PlayVideo(context.Background(), Video{Kind: VideoGreeting, URL: "http://x/g.mp4"}, func() { called = true })
	require.True(t, called)
}

func TestDesktopNotificationsReplaceAndDismiss(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installStub(t, "busctl", `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ "$6" == "Notify" ]]; then
  echo "u 42"
fi
`)

	var out bytes.Buffer
	c := NewConsole(Options{Out: &out, Notify: true, DesktopAppName: " parley-test "})
	ctx := context.Background()
	c.ShowPhase(ctx, fsm.StateListening)
	c.ShowPhase(ctx, fsm.StateSubmitting)
	c.Close(ctx)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Notify susssasa{sv}i parley-test 0  Listening")
	require.Contains(t, lines[1], "Notify susssasa{sv}i parley-test 42  Submitting answer…")
	require.True(t, strings.HasSuffix(lines[2], "CloseNotification u 42"))
}

func TestNotificationsDisabledSkipBusctl(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installStub(t, "busctl", `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
`)

	c, _ := newTestConsole(t, Options{})
	c.ShowPhase(context.Background(), fsm.StateListening)
	c.ShowError(context.Background(), "boom")

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func TestShowErrorUsesDefaultText(t *testing.T) {
	c, out := newTestConsole(t, Options{})
	c.ShowError(context.Background(), " ")
	require.Contains(t, out.String(), "Error: Interview error")
}

func installStub(t *testing.T, name string, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	return path
}
