// Package session drives one interview: transport events in, phase changes,
// capture, and display updates out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/endpoint"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/protocol"
	"github.com/rbright/parley/internal/transport"
)

// DefaultMaxAnswer bounds one recorded answer when no limit is configured.
const DefaultMaxAnswer = 30 * time.Second

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Transport is the session-facing subset of transport.Transport.
type Transport interface {
	Connect(context.Context) error
	Events() <-chan transport.Event
	SendControl(context.Context, protocol.MessageType) error
	SendAudio(context.Context, []byte) error
	BytesSent() int64
	Close() error
}

// Media is the session-facing subset of media.Adapter.
type Media interface {
	Granted() bool
	Start(context.Context) error
	Stop() ([]byte, bool, error)
	Discard()
	Release()
}

// Options carries per-session settings.
type Options struct {
	SessionID string
	Base      endpoint.Base
	MaxAnswer time.Duration
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State             fsm.State
	SessionID         string
	Results           *protocol.SessionResult
	QuestionsAnswered int
	LastIndex         int
	BytesSent         int64
	Cancelled         bool
	Err               error
	StartedAt         time.Time
	FinishedAt        time.Time
}

// noopMedia stands in when capture is unavailable; listening is never entered.
type noopMedia struct{}

func (noopMedia) Granted() bool               { return false }
func (noopMedia) Start(context.Context) error { return errors.New("media capture not wired") }
func (noopMedia) Stop() ([]byte, bool, error) { return nil, false, nil }
func (noopMedia) Discard()                    {}
func (noopMedia) Release()                    {}

// noopDisplay preserves session flow when no display is wired.
type noopDisplay struct{}

func (noopDisplay) ShowPhase(context.Context, fsm.State)              {}
func (noopDisplay) ShowQuestion(context.Context, int, int, string)    {}
func (noopDisplay) ShowTranscript(context.Context, string, bool)      {}
func (noopDisplay) ShowFeedback(context.Context, protocol.Evaluation) {}
func (noopDisplay) ShowError(context.Context, string)                 {}
func (noopDisplay) ClearResponse(context.Context)                     {}
func (noopDisplay) Close(context.Context)                             {}

func (noopDisplay) PlayVideo(_ context.Context, _ indicator.Video, done func()) {
	if done != nil {
		done()
	}
}

// playback identifies the clip whose playback finished.
type playback struct {
	kind  indicator.VideoKind
	index int
}

// Controller orchestrates session state transitions and side effects. Run
// owns every transition; Handle and the Request methods only enqueue actions.
type Controller struct {
	logger    *slog.Logger
	transport Transport
	media     Media
	display   indicator.Display
	opts      Options

	mu       sync.RWMutex
	state    fsm.State
	index    int
	total    int
	answered int
	greeted  bool

	actions  chan action
	playback chan playback
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	tr Transport,
	media Media,
	display indicator.Display,
	opts Options,
) *Controller {
	if media == nil {
		media = noopMedia{}
	}
	if display == nil {
		display = noopDisplay{}
	}
	if opts.MaxAnswer <= 0 {
		opts.MaxAnswer = DefaultMaxAnswer
	}

	return &Controller{
		logger:    logger,
		transport: tr,
		media:     media,
		display:   display,
		opts:      opts,
		state:     fsm.StateConnecting,
		actions:   make(chan action, 2),
		playback:  make(chan playback, 8),
	}
}

// State reports the current phase.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()
	return state
}

// Question returns the current question index and the announced total.
func (c *Controller) Question() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index, c.total
}

// transition moves the phase along event. The phase is unchanged on error.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	from := c.state
	next, err := fsm.Transition(from, event)
	if err == nil {
		c.state = next
	}
	c.mu.Unlock()

	if err == nil && next != from {
		c.logDebug("phase changed", "from", string(from), "to", string(next), "event", string(event))
	}
	return err
}

// run carries the mutable per-Run values the handlers share.
type run struct {
	result  Result
	timer   *time.Timer
	timeout <-chan time.Time
	done    bool
}

// Run executes one session from connect to results, failure, or cancel.
func (c *Controller) Run(ctx context.Context) Result {
	r := &run{result: Result{SessionID: c.opts.SessionID, StartedAt: time.Now()}}

	defer func() {
		r.stopTimer()
		c.media.Release()
		if c.transport != nil {
			if err := c.transport.Close(); err != nil {
				c.logWarn("close transport failed", "error", err.Error())
			}
		}
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.display.Close(cleanupCtx)
	}()

	if c.transport == nil {
		c.fail(ctx, r, errors.New("session transport not wired"), "")
		return c.finish(r)
	}

	c.display.ShowPhase(ctx, fsm.StateConnecting)
	if err := c.transport.Connect(ctx); err != nil {
		c.fail(ctx, r, fmt.Errorf("connect: %w", err), "Unable to connect to the interview server")
		return c.finish(r)
	}

	events := c.transport.Events()
	for !r.done {
		select {
		case <-ctx.Done():
			c.media.Discard()
			c.display.ShowError(context.Background(), "Cancelled")
			_ = c.transition(fsm.EventFail)
			r.result.Cancelled = true
			r.result.Err = ctx.Err()
			r.done = true
		case ev, ok := <-events:
			if !ok {
				events = nil
				if !c.State().Terminal() {
					c.fail(ctx, r, transport.ErrConnectionLost, "")
				}
				continue
			}
			c.handleEvent(ctx, r, ev)
		case a := <-c.actions:
			c.handleAction(ctx, r, a, "user")
		case <-r.timeout:
			r.timeout = nil
			c.logInfo("answer time limit reached", "limit", c.opts.MaxAnswer.String())
			c.handleAction(ctx, r, actionStop, "timeout")
		case p := <-c.playback:
			c.handlePlayback(ctx, p)
		}
	}

	return c.finish(r)
}

func (c *Controller) finish(r *run) Result {
	c.mu.RLock()
	r.result.State = c.state
	r.result.LastIndex = c.index
	r.result.QuestionsAnswered = c.answered
	c.mu.RUnlock()
	if c.transport != nil {
		r.result.BytesSent = c.transport.BytesSent()
	}
	r.result.FinishedAt = time.Now()
	return r.result
}

func (c *Controller) handleEvent(ctx context.Context, r *run, ev transport.Event) {
	switch ev.Kind {
	case transport.EventOpen:
		if err := c.transition(fsm.EventOpen); err != nil {
			c.logWarn("unexpected open event", "error", err.Error())
			return
		}
		if err := c.transport.SendControl(ctx, protocol.TypeReady); err != nil {
			c.fail(ctx, r, fmt.Errorf("send ready: %w", err), "")
			return
		}
		c.display.ClearResponse(ctx)
		c.display.ShowPhase(ctx, fsm.StateAwaitingGreeting)
	case transport.EventMessage:
		c.handleMessage(ctx, r, ev.Message)
	case transport.EventMalformed:
		c.fail(ctx, r, &ProtocolError{Raw: ev.Raw, Err: ev.Err}, "The interview server sent an unreadable message")
	case transport.EventClosed:
		if c.State().Terminal() {
			return
		}
		err := ev.Err
		if err == nil {
			err = transport.ErrConnectionLost
		}
		c.fail(ctx, r, err, "Connection to the interview server was lost")
	}
}

func (c *Controller) handleMessage(ctx context.Context, r *run, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.GreetingVideo:
		c.onGreeting(ctx, m)
	case protocol.QuestionVideo:
		c.onQuestion(ctx, r, m)
	case protocol.StartListening:
		c.onStartListening(ctx, r, m)
	case protocol.Transcription:
		c.display.ShowTranscript(ctx, m.Text, m.Final)
	case protocol.Evaluation:
		c.display.ShowFeedback(ctx, m)
	case protocol.ServerError:
		message := strings.TrimSpace(m.Message)
		if message == "" {
			message = "unspecified error"
		}
		c.fail(ctx, r, fmt.Errorf("%w: %s", ErrServerReported, message), message)
	case protocol.SessionResult:
		c.onResults(ctx, r, m)
	default:
		c.fail(ctx, r, &ProtocolError{Err: fmt.Errorf("%w: %s", protocol.ErrUnknownType, msg.MessageType())}, "")
	}
}

func (c *Controller) onGreeting(ctx context.Context, m protocol.GreetingVideo) {
	c.mu.Lock()
	greeted := c.greeted
	c.greeted = true
	c.mu.Unlock()
	if greeted {
		c.logWarn("ignoring repeated greeting")
		return
	}

	if err := c.transition(fsm.EventGreeting); err != nil {
		c.logWarn("ignoring greeting", "state", string(c.State()), "error", err.Error())
		return
	}

	c.display.ClearResponse(ctx)
	c.display.ShowPhase(ctx, fsm.StatePresentingQuestion)
	c.display.PlayVideo(ctx, indicator.Video{
		Kind: indicator.VideoGreeting,
		URL:  c.opts.Base.Media(m.VideoURL),
		Text: m.Text,
	}, c.playbackDone(indicator.VideoGreeting, 0))
}

func (c *Controller) onQuestion(ctx context.Context, r *run, m protocol.QuestionVideo) {
	current, total := c.Question()
	switch {
	case m.Index <= current:
		c.logWarn("ignoring non-advancing question", "index", m.Index, "current", current)
		return
	case total > 0 && m.Index > total:
		c.logWarn("ignoring question beyond total", "index", m.Index, "total", total)
		return
	case m.Index != current+1:
		c.logWarn("question index skipped ahead", "index", m.Index, "expected", current+1)
	}

	if err := c.transition(fsm.EventQuestion); err != nil {
		c.logWarn("ignoring question", "index", m.Index, "state", string(c.State()), "error", err.Error())
		return
	}

	// Any capture belongs to the previous question.
	r.stopTimer()
	c.media.Discard()

	c.mu.Lock()
	c.index = m.Index
	if m.Total > 0 {
		c.total = m.Total
	}
	total = c.total
	c.mu.Unlock()

	c.display.ClearResponse(ctx)
	c.display.ShowPhase(ctx, fsm.StatePresentingQuestion)
	c.display.ShowQuestion(ctx, m.Index, total, m.Text)
	c.display.PlayVideo(ctx, indicator.Video{
		Kind: indicator.VideoQuestion,
		URL:  c.opts.Base.Media(m.VideoURL),
		Text: m.Text,
	}, c.playbackDone(indicator.VideoQuestion, m.Index))
}

func (c *Controller) onStartListening(ctx context.Context, r *run, m protocol.StartListening) {
	if state := c.State(); state != fsm.StatePresentingQuestion {
		c.logWarn("ignoring start_listening", "state", string(state))
		return
	}
	// A greeting also lands in presenting_question; capture needs a question.
	if current, _ := c.Question(); current == 0 {
		c.logWarn("ignoring start_listening before first question")
		return
	}
	if !c.media.Granted() {
		c.logWarn("start_listening without media permission")
		c.display.ShowError(ctx, "Microphone is not available; this answer cannot be recorded")
		return
	}
	if err := c.media.Start(ctx); err != nil {
		c.logWarn("start capture failed", "error", err.Error())
		c.display.ShowError(ctx, "Unable to start recording")
		return
	}
	if err := c.transition(fsm.EventStartListening); err != nil {
		c.media.Discard()
		c.logWarn("ignoring start_listening", "error", err.Error())
		return
	}

	r.startTimer(c.opts.MaxAnswer)
	c.display.ClearResponse(ctx)
	c.display.ShowPhase(ctx, fsm.StateListening)
	if m.VideoURL != "" {
		c.display.PlayVideo(ctx, indicator.Video{
			Kind: indicator.VideoListening,
			URL:  c.opts.Base.Media(m.VideoURL),
		}, nil)
	}
}

func (c *Controller) onResults(ctx context.Context, r *run, m protocol.SessionResult) {
	if err := c.transition(fsm.EventResults); err != nil {
		c.logWarn("ignoring results", "state", string(c.State()), "error", err.Error())
		return
	}
	r.stopTimer()
	c.media.Release()
	c.display.ClearResponse(ctx)
	c.display.ShowPhase(ctx, fsm.StateAwaitingResults)

	results := m
	r.result.Results = &results
	if err := c.transition(fsm.EventComplete); err != nil {
		c.fail(ctx, r, err, "")
		return
	}
	c.display.ShowPhase(ctx, fsm.StateCompleted)
	c.logInfo("interview completed", "overall_score", m.OverallScore, "breakdown", len(m.Breakdown))
	r.done = true
}

func (c *Controller) handleAction(ctx context.Context, r *run, a action, source string) {
	switch a {
	case actionStop:
		c.submitAnswer(ctx, r, source)
	case actionCancel:
		r.stopTimer()
		c.media.Discard()
		_ = c.transition(fsm.EventFail)
		c.display.ShowError(ctx, "Interview cancelled")
		r.result.Cancelled = true
		r.result.Err = ErrCancelled
		r.done = true
	default:
		c.fail(ctx, r, fmt.Errorf("unknown action %d", a), "")
	}
}

// submitAnswer finalizes the capture and sends it followed by audio_end.
func (c *Controller) submitAnswer(ctx context.Context, r *run, source string) {
	if state := c.State(); state != fsm.StateListening {
		c.logDebug("ignoring stop", "source", source, "state", string(state))
		return
	}
	if err := c.transition(fsm.EventStop); err != nil {
		c.logWarn("stop rejected", "error", err.Error())
		return
	}
	r.stopTimer()
	c.display.ShowPhase(ctx, fsm.StateSubmitting)

	payload, ok, err := c.media.Stop()
	if err != nil {
		c.fail(ctx, r, fmt.Errorf("finalize answer: %w", err), "Recording failed")
		return
	}
	if !ok {
		c.fail(ctx, r, ErrNoCapture, "Nothing was recorded for this answer")
		return
	}

	if err := c.transport.SendAudio(ctx, payload); err != nil {
		c.fail(ctx, r, fmt.Errorf("submit answer: %w", err), "Unable to submit the answer")
		return
	}

	c.mu.Lock()
	c.answered++
	index := c.index
	c.mu.Unlock()
	c.logInfo("answer submitted", "index", index, "bytes", len(payload), "source", source)
}

// handlePlayback acknowledges a finished clip when the phase it belonged to
// is still current. It never starts listening.
func (c *Controller) handlePlayback(ctx context.Context, p playback) {
	current, _ := c.Question()
	if c.State() != fsm.StatePresentingQuestion || current != p.index {
		c.logDebug("stale playback completion", "kind", string(p.kind), "index", p.index)
		return
	}

	msgType := protocol.TypeListeningStart
	if p.kind == indicator.VideoGreeting {
		msgType = protocol.TypeGreetingComplete
	}
	if err := c.transport.SendControl(ctx, msgType); err != nil {
		c.logWarn("send playback acknowledgement failed", "type", string(msgType), "error", err.Error())
	}
}

func (c *Controller) playbackDone(kind indicator.VideoKind, index int) func() {
	return func() {
		select {
		case c.playback <- playback{kind: kind, index: index}:
		default:
		}
	}
}

// fail moves the session to error, releases media, and surfaces text.
func (c *Controller) fail(ctx context.Context, r *run, err error, text string) {
	r.stopTimer()
	c.media.Release()
	_ = c.transition(fsm.EventFail)

	if text == "" {
		text = err.Error()
	}
	c.logError("interview failed", err)
	c.display.ShowError(ctx, text)
	c.display.ShowPhase(ctx, fsm.StateError)
	r.result.Err = err
	r.done = true
}

func (r *run) startTimer(d time.Duration) {
	r.stopTimer()
	r.timer = time.NewTimer(d)
	r.timeout = r.timer.C
}

func (r *run) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = nil
	r.timeout = nil
}

// Handle serves IPC commands for the active interview.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	if req.Source != "" && req.Command != ipc.CommandStatus {
		c.logDebug("ipc command", "command", req.Command, "source", req.Source)
	}
	switch req.Command {
	case ipc.CommandStatus:
		index, total := c.Question()
		return ipc.Response{
			OK:        true,
			State:     string(c.State()),
			SessionID: c.opts.SessionID,
			Question:  index,
			Total:     total,
			Message:   "status",
		}
	case ipc.CommandStop:
		return c.RequestStop("stop")
	case ipc.CommandCancel:
		return c.RequestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// RequestStop asks Run to submit the current answer. It is refused outside
// listening.
func (c *Controller) RequestStop(source string) ipc.Response {
	switch state := c.State(); state {
	case fsm.StateListening:
		return c.enqueue(actionStop, state, "stop")
	case fsm.StateSubmitting:
		return refuse(state, "answer already submitting")
	default:
		return refuse(state, fmt.Sprintf("cannot %s from state %s", source, state))
	}
}

// RequestCancel asks Run to abandon the session from any live phase.
func (c *Controller) RequestCancel() ipc.Response {
	state := c.State()
	if state.Terminal() {
		return refuse(state, fmt.Sprintf("cannot cancel from state %s", state))
	}
	return c.enqueue(actionCancel, state, "cancel")
}

// enqueue hands a to Run without blocking. A full queue already holds a
// pending request, which is reported as success.
func (c *Controller) enqueue(a action, state fsm.State, verb string) ipc.Response {
	resp := ipc.Response{OK: true, State: string(state), Message: verb + " requested"}
	select {
	case c.actions <- a:
	default:
		resp.Message = verb + " already requested"
	}
	return resp
}

func refuse(state fsm.State, reason string) ipc.Response {
	return ipc.Response{OK: false, State: string(state), Error: reason}
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, c.withSession(args)...)
	}
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, c.withSession(args)...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, c.withSession(args)...)
	}
}

func (c *Controller) logError(msg string, err error) {
	if c.logger != nil {
		c.logger.Error(msg, c.withSession([]any{"error", err.Error()})...)
	}
}

func (c *Controller) withSession(args []any) []any {
	return append([]any{"session_id", c.opts.SessionID}, args...)
}
