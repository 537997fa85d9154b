package app

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/bootstrap"
	"github.com/rbright/parley/internal/camera"
	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/doctor"
	"github.com/rbright/parley/internal/endpoint"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/media"
	"github.com/rbright/parley/internal/protocol"
	"github.com/rbright/parley/internal/results"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/transport"
	"github.com/rbright/parley/internal/version"
)

const binaryName = "parley"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Stdin delivers Enter presses that submit the current answer.
	Stdin  io.Reader
	Logger *slog.Logger
	// Devices replaces the system microphone/camera when set.
	Devices media.Devices
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr, Stdin: stdin}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	switch {
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n\n%s", err, cli.HelpText(binaryName))
		return 2
	case parsed.ShowHelp:
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	case parsed.Command == cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	env, code := r.prepare(parsed)
	if env == nil {
		return code
	}
	defer env.close()

	env.logger.Info("command start",
		"command", parsed.Command,
		"config", env.loaded.Path,
		"log", env.logPath,
	)
	return r.dispatch(ctx, parsed, env)
}

// runEnv is what every command beyond help/version needs: a run-scoped
// logger and the resolved config.
type runEnv struct {
	logger  *slog.Logger
	logPath string
	loaded  config.Loaded
	close   func()
}

func (r Runner) prepare(parsed cli.Parsed) (*runEnv, int) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
	}

	logRuntime, err := logging.New(uuid.NewString())
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return nil, 1
	}
	env := &runEnv{
		logger:  cmp.Or(r.Logger, logRuntime.Logger),
		logPath: logRuntime.Path,
		close:   func() { _ = logRuntime.Close() },
	}

	env.loaded, err = config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		env.logger.Error("load config failed", "error", err.Error())
		env.close()
		return nil, 1
	}
	for _, w := range env.loaded.Warnings {
		env.logger.Warn("config warning", "line", w.Line, "message", w.Message)
		if w.Line > 0 {
			fmt.Fprintf(r.Stderr, "warning: line %d: %s\n", w.Line, w.Message)
			continue
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
	}
	return env, 0
}

func (r Runner) dispatch(ctx context.Context, parsed cli.Parsed, env *runEnv) int {
	cfg := env.loaded.Config
	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, parsed, cfg, env.logger)
	case cli.CommandResults:
		return r.commandResults(ctx, parsed, cfg, env.logger)
	case cli.CommandHistory:
		return r.commandHistory(parsed, cfg)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandDevices:
		return r.commandDevices(ctx, cfg)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, env.loaded)
		fmt.Fprintln(r.Stdout, report.String())
		return exitCode(report.OK())
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func exitCode(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

func (r Runner) commandDevices(ctx context.Context, cfg config.Config) int {
	backend := audio.Backend(cfg.Audio.Backend)
	devices, err := audio.ListDevices(ctx, backend)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintf(r.Stdout, "no %s input devices found\n", backend)
		return 1
	}

	yesNo := map[bool]string{true: "yes", false: "no"}
	tw := tabwriter.NewWriter(r.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEFAULT\tID\tDESCRIPTION\tSTATE\tAVAILABLE\tMUTED")
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			mark, d.ID, d.Description, cmp.Or(d.State, "-"), yesNo[d.Available], yesNo[d.Muted])
	}
	_ = tw.Flush()

	selected, err := audio.SelectDevice(ctx, backend, cfg.Audio.Input, cfg.Audio.Fallback)
	if err == nil && selected.Device.ID != "" {
		fmt.Fprintf(r.Stdout, "\ninterview input: %s\n", selected.Device.ID)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := ipc.Forward(ctx, ipc.RuntimeSocketPath(), ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, formatStatus(resp))
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func formatStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	var details []string
	if resp.SessionID != "" {
		details = append(details, "session "+resp.SessionID)
	}
	if resp.Question > 0 && resp.Total > 0 {
		details = append(details, fmt.Sprintf("question %d/%d", resp.Question, resp.Total))
	}
	if len(details) == 0 {
		return state
	}
	return fmt.Sprintf("%s (%s)", state, strings.Join(details, ", "))
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	resp, handled, err := ipc.Forward(ctx, ipc.RuntimeSocketPath(), command)
	switch {
	case !handled:
		fmt.Fprintf(r.Stderr, "error: no active parley session to %s\n", command)
		return 1
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %s refused: %v\n", command, err)
		return 1
	}
	fmt.Fprintln(r.Stdout, cmp.Or(resp.Message, command+" sent"))
	return 0
}

func (r Runner) commandRun(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	format, err := resolveFormat(parsed.Format, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}
	req, err := buildRequest(parsed.Run, cfg.Interview)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	base, err := endpoint.Parse(cfg.API.BaseURL)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	socketPath := ipc.RuntimeSocketPath()
	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: an interview session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	client := bootstrap.NewClient(base, time.Duration(cfg.API.TimeoutMS)*time.Millisecond, logger)
	setup, err := client.Setup(ctx, req)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: interview setup failed: %v\n", err)
		logger.Error("interview setup failed", "error", err.Error())
		return 1
	}
	logger.Info("interview setup", "session_id", setup.ID, "endpoint", setup.Endpoint)

	// Structured output keeps stdout for the rendered result only.
	progress := r.Stdout
	if format != results.FormatText {
		progress = r.Stderr
	}
	if setup.Message != "" {
		fmt.Fprintln(progress, setup.Message)
	}

	tr, err := transport.New(transport.Config{
		Endpoint:  setup.Endpoint,
		SessionID: setup.ID,
		Base:      base,
		Header:    http.Header{"User-Agent": []string{version.UserAgent()}},
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Debug("session transport", "session_id", setup.ID, "url", tr.URL())

	adapter := media.NewAdapter(media.Config{
		Secure:  base.Secure(),
		Devices: r.devices(cfg, logger),
		Logger:  logger,
	})
	permission, err := adapter.Acquire(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
		logger.Warn("media unavailable", "permission", string(permission), "error", err.Error())
	} else {
		logger.Info("media acquired", "permission", string(permission), "tracks", adapter.LiveTracks())
	}

	display := indicator.NewConsole(indicator.Options{
		Out:            progress,
		PlayerCmd:      cfg.Display.PlayerCmd.Argv,
		Notify:         cfg.Display.Notify,
		DesktopAppName: cfg.Display.DesktopAppName,
		SoundEnable:    cfg.Display.SoundEnable,
		Logger:         logger,
	})
	controller := session.NewController(logger, tr, adapter, display, session.Options{
		SessionID: setup.ID,
		Base:      base,
		MaxAnswer: time.Duration(cfg.Interview.MaxAnswerSeconds) * time.Second,
	})

	// The socket stays up for the whole run so stop/cancel/status work from
	// another terminal.
	ipcCtx, stopIPC := context.WithCancel(ctx)
	defer stopIPC()
	ipcDone := make(chan error, 1)
	go func() { ipcDone <- ipc.Serve(ipcCtx, listener, controller) }()
	go r.watchEnter(controller, logger)

	result := controller.Run(ctx)
	stopIPC()
	if err := <-ipcDone; err != nil {
		logger.Warn("ipc server stopped early", "error", err.Error())
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}

	outcome := result.Results
	if outcome == nil && cfg.Interview.ResultsFallback && result.QuestionsAnswered > 0 {
		fetched, fetchErr := client.Results(context.WithoutCancel(ctx), setup.ID)
		if fetchErr != nil {
			logger.Warn("results fallback failed", "session_id", setup.ID, "error", fetchErr.Error())
		} else {
			outcome = &fetched
		}
	}

	exitCode := 0
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		exitCode = 1
	}
	if outcome == nil {
		return 1
	}

	if err := results.Render(r.Stdout, *outcome, format); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	reportURL := client.ReportURL(setup.ID)
	fmt.Fprintf(progress, "\nReport: %s\n", reportURL)
	if cfg.Results.Archive {
		r.archive(logger, results.Record{
			SessionID:     setup.ID,
			CandidateName: strings.TrimSpace(req.CandidateName),
			ReportURL:     reportURL,
			Result:        *outcome,
		}, progress)
	}

	return exitCode
}

// watchEnter submits the current answer on every line read from Stdin.
func (r Runner) watchEnter(controller *session.Controller, logger *slog.Logger) {
	if r.Stdin == nil {
		return
	}
	scanner := bufio.NewScanner(r.Stdin)
	for scanner.Scan() {
		if controller.State().Terminal() {
			return
		}
		resp := controller.RequestStop("enter")
		if !resp.OK {
			logger.Debug("enter ignored", "state", resp.State, "reason", resp.Error)
		}
	}
}

func (r Runner) archive(logger *slog.Logger, rec results.Record, progress io.Writer) {
	dir, err := results.DefaultDir()
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: archive results: %v\n", err)
		return
	}
	path, err := results.NewStore(dir).Save(rec)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: archive results: %v\n", err)
		logger.Warn("archive results failed", "session_id", rec.SessionID, "error", err.Error())
		return
	}
	fmt.Fprintf(progress, "Saved: %s\n", path)
	logger.Info("results archived", "session_id", rec.SessionID, "path", path)
}

func (r Runner) commandResults(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	format, err := resolveFormat(parsed.Format, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	outcome, err := fetchResults(ctx, cfg, parsed.SessionID, logger)
	if err != nil {
		store, storeErr := openStore()
		if storeErr != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		rec, loadErr := store.Load(parsed.SessionID)
		if loadErr != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			if !errors.Is(loadErr, results.ErrNotFound) {
				fmt.Fprintf(r.Stderr, "error: %v\n", loadErr)
			}
			return 1
		}
		fmt.Fprintf(r.Stderr, "warning: %v; showing archived result from %s\n", err, rec.SavedAt.Local().Format(time.DateTime))
		outcome = rec.Result
	}

	if err := results.Render(r.Stdout, outcome, format); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func fetchResults(ctx context.Context, cfg config.Config, sessionID string, logger *slog.Logger) (protocol.SessionResult, error) {
	base, err := endpoint.Parse(cfg.API.BaseURL)
	if err != nil {
		return protocol.SessionResult{}, err
	}
	client := bootstrap.NewClient(base, time.Duration(cfg.API.TimeoutMS)*time.Millisecond, logger)
	return client.Results(ctx, sessionID)
}

func (r Runner) commandHistory(parsed cli.Parsed, cfg config.Config) int {
	format, err := resolveFormat(parsed.Format, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	store, err := openStore()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	records, err := store.List()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := results.RenderHistory(r.Stdout, records, format); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func openStore() (*results.Store, error) {
	dir, err := results.DefaultDir()
	if err != nil {
		return nil, err
	}
	return results.NewStore(dir), nil
}

func resolveFormat(flag string, cfg config.Config) (results.Format, error) {
	if strings.TrimSpace(flag) != "" {
		return results.ParseFormat(flag)
	}
	return results.ParseFormat(cfg.Results.Format)
}

// buildRequest merges run flags over the configured interview defaults. An
// explicit --questions or --duration replaces the other configured limit.
func buildRequest(flags cli.RunFlags, cfg config.InterviewConfig) (bootstrap.Request, error) {
	req := bootstrap.Request{
		CandidateName:   flags.Candidate,
		JobDescription:  flags.Job,
		QuestionCount:   cfg.QuestionCount,
		DurationMinutes: cfg.DurationMinutes,
	}

	if flags.JobFile != "" {
		if flags.Job != "" {
			return bootstrap.Request{}, errors.New("--job and --job-file are mutually exclusive")
		}
		content, err := os.ReadFile(flags.JobFile)
		if err != nil {
			return bootstrap.Request{}, fmt.Errorf("read job description: %w", err)
		}
		req.JobDescription = string(content)
	}

	switch {
	case flags.Questions > 0 && flags.Duration > 0:
		req.QuestionCount, req.DurationMinutes = flags.Questions, flags.Duration
	case flags.Questions > 0:
		req.QuestionCount, req.DurationMinutes = flags.Questions, 0
	case flags.Duration > 0:
		req.QuestionCount, req.DurationMinutes = 0, flags.Duration
	}
	return req, nil
}

func (r Runner) devices(cfg config.Config, logger *slog.Logger) media.Devices {
	if r.Devices != nil {
		return r.Devices
	}
	return media.SystemDevices{
		Audio: audio.Options{
			Backend:  audio.Backend(cfg.Audio.Backend),
			Input:    cfg.Audio.Input,
			Fallback: cfg.Audio.Fallback,
			AppName:  cfg.Display.DesktopAppName,
			Logger:   logger,
		},
		Camera: cfg.Media.Camera,
		Preview: camera.Options{
			Device: cfg.Media.CameraDevice,
			Window: cfg.Media.Preview,
			Title:  binaryName + " preview",
			Logger: logger,
		},
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session_id", result.SessionID,
		"state", result.State,
		"cancelled", result.Cancelled,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"questions_answered", result.QuestionsAnswered,
		"last_question", result.LastIndex,
		"bytes_sent", result.BytesSent,
		"has_results", result.Results != nil,
	}
	if result.Results != nil {
		fields = append(fields, "overall_score", result.Results.OverallScore)
	}

	if result.Err != nil && !result.Cancelled {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
