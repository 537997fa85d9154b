// Package indicator renders interview progress on the console and, when
// enabled, through desktop notifications, audio cues, and an external video
// player.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/protocol"
)

// VideoKind identifies which avatar clip a Video carries.
type VideoKind string

const (
	VideoGreeting  VideoKind = "greeting"
	VideoQuestion  VideoKind = "question"
	VideoListening VideoKind = "listening"
)

// Video is one avatar clip with its already-resolved URL.
type Video struct {
	Kind VideoKind
	URL  string
	Text string
}

// Display is the session-facing rendering contract.
type Display interface {
	ShowPhase(context.Context, fsm.State)
	// PlayVideo presents video and calls done once playback finished. done
	// may run before PlayVideo returns and from another goroutine.
	PlayVideo(ctx context.Context, video Video, done func())
	ShowQuestion(ctx context.Context, index int, total int, text string)
	ShowTranscript(ctx context.Context, text string, final bool)
	ShowFeedback(context.Context, protocol.Evaluation)
	ShowError(context.Context, string)
	ClearResponse(context.Context)
	Close(context.Context)
}

// Options configures a Console.
type Options struct {
	Out            io.Writer
	PlayerCmd      []string
	Notify         bool
	DesktopAppName string
	SoundEnable    bool
	Logger         *slog.Logger
}

// Console is the runtime Display: line-oriented stdout output plus the
// optional notification, cue, and player side channels.
type Console struct {
	opts     Options
	out      io.Writer
	logger   *slog.Logger
	messages messages
	player   *player

	mu          sync.Mutex
	lastPartial string
	lastFinal   string

	notifyMu              sync.Mutex
	desktopNotificationID uint32

	cues *cuePlayer
}

// NewConsole creates a Console. A nil Out writes to stdout.
func NewConsole(opts Options) *Console {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	opts.DesktopAppName = strings.TrimSpace(opts.DesktopAppName)
	if opts.DesktopAppName == "" {
		opts.DesktopAppName = "parley"
	}
	return &Console{
		opts:     opts,
		out:      out,
		logger:   opts.Logger,
		messages: englishMessages,
		player:   newPlayer(opts.PlayerCmd, opts.Logger),
		cues:     newCuePlayer(opts.DesktopAppName),
	}
}

// ShowPhase prints the phase banner and emits its cue and notification.
func (c *Console) ShowPhase(ctx context.Context, state fsm.State) {
	text := c.messages.phase(state)
	if text == "" {
		return
	}
	c.printf("[%s] %s\n", state, text)

	switch state {
	case fsm.StateListening:
		c.playCue(ctx, cueListening)
		c.notify(ctx, 300000, text)
	case fsm.StateSubmitting:
		c.playCue(ctx, cueSubmitted)
		c.notify(ctx, 300000, text)
	case fsm.StateCompleted:
		c.playCue(ctx, cueComplete)
		c.notify(ctx, 4000, text)
	case fsm.StateError:
		c.playCue(ctx, cueError)
	}
}

// PlayVideo prints the clip and hands it to the player when one is set.
// Without a player, playback counts as finished immediately.
func (c *Console) PlayVideo(ctx context.Context, video Video, done func()) {
	if strings.TrimSpace(video.Text) != "" && video.Kind == VideoGreeting {
		c.printf("%s\n", video.Text)
	}
	if video.URL != "" {
		c.printf("  %s video: %s\n", video.Kind, video.URL)
	}

	if video.Kind == VideoListening {
		return
	}
	if video.URL == "" || !c.player.enabled() {
		if done != nil {
			done()
		}
		return
	}
	if err := c.player.play(ctx, video.URL, done); err != nil {
		c.log("video player failed", err)
		if done != nil {
			done()
		}
	}
}

// ShowQuestion prints the question header and text.
func (c *Console) ShowQuestion(_ context.Context, index int, total int, text string) {
	if total > 0 {
		c.printf("\nQuestion %d of %d\n", index, total)
	} else {
		c.printf("\nQuestion %d\n", index)
	}
	if text = strings.TrimSpace(text); text != "" {
		c.printf("  %s\n", text)
	}
}

// ShowTranscript prints speech-to-text. Partials that barely differ from the
// last printed partial are dropped.
func (c *Console) ShowTranscript(_ context.Context, text string, final bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if final {
		if text == c.lastFinal {
			return
		}
		c.lastFinal = text
		c.lastPartial = ""
		fmt.Fprintf(c.out, "  %s %s\n", c.messages.transcript, text)
		return
	}

	if nearDuplicate(c.lastPartial, text) {
		return
	}
	c.lastPartial = text
	fmt.Fprintf(c.out, "  … %s\n", text)
}

// ShowFeedback prints one answer's evaluation.
func (c *Console) ShowFeedback(_ context.Context, eval protocol.Evaluation) {
	score := eval.Score
	if marks, ok := protocol.ParseMarks(eval.Marks); ok && score == 0 {
		score = marks
	}
	c.printf("  %s %.1f/10\n", c.messages.score, score)
	if feedback := strings.TrimSpace(eval.Feedback); feedback != "" {
		c.printf("  %s\n", feedback)
	}
}

// ShowError prints text and raises an error notification.
func (c *Console) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = c.messages.errorText
	}
	c.printf("%s %s\n", c.messages.errorPrefix, text)
	c.notify(ctx, 6000, text)
}

// ClearResponse forgets the transcript state of the previous answer.
func (c *Console) ClearResponse(context.Context) {
	c.mu.Lock()
	c.lastPartial = ""
	c.lastFinal = ""
	c.mu.Unlock()
}

// Close stops any running player, dismisses the notification, and waits for
// in-flight cues.
func (c *Console) Close(ctx context.Context) {
	c.player.stop()
	c.player.wait()
	if c.opts.Notify {
		c.run(ctx, c.dismissDesktop)
	}
	c.cues.close()
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) notify(ctx context.Context, timeoutMS int, text string) {
	if !c.opts.Notify {
		return
	}
	c.run(ctx, func(ctx context.Context) error {
		return c.notifyDesktop(ctx, timeoutMS, text)
	})
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (c *Console) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	id, err := desktopNotify(ctx, c.opts.DesktopAppName, c.desktopNotificationID, text, timeoutMS)
	if err != nil {
		return err
	}
	c.desktopNotificationID = id
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (c *Console) dismissDesktop(ctx context.Context) error {
	c.notifyMu.Lock()
	id := c.desktopNotificationID
	c.desktopNotificationID = 0
	c.notifyMu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification call with a bounded timeout.
func (c *Console) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		c.log("indicator dispatch failed", err)
	}
}

// playCue queues an audio cue when sounds are enabled.
func (c *Console) playCue(ctx context.Context, kind cueKind) {
	if !c.opts.SoundEnable {
		return
	}
	c.cues.playAsync(ctx, kind, func(err error) {
		c.log("indicator audio cue failed", err)
	})
}

// log emits debug-only indicator failures to the runtime logger.
func (c *Console) log(message string, err error) {
	if c.logger == nil || err == nil {
		return
	}
	c.logger.Debug(message, "error", err.Error())
}
