// Package doctor runs readiness diagnostics for config, the interview API,
// display tools, audio, and the camera.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/bootstrap"
	"github.com/rbright/parley/internal/camera"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/endpoint"
)

const healthTimeout = 3 * time.Second

// Check is one readiness probe outcome.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

func (c Check) String() string {
	mark := "OK"
	if !c.Pass {
		mark = "FAIL"
	}
	return fmt.Sprintf("[%s] %s: %s", mark, c.Name, c.Message)
}

// Report collects every check in the order it ran.
type Report struct {
	Checks []Check
}

// OK reports whether the machine is ready for an interview.
func (r Report) OK() bool {
	return !slices.ContainsFunc(r.Checks, func(c Check) bool { return !c.Pass })
}

// String prints one check per line.
func (r Report) String() string {
	lines := make([]string, len(r.Checks))
	for i, check := range r.Checks {
		lines[i] = check.String()
	}
	return strings.Join(lines, "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	base, err := endpoint.Parse(cfg.Config.API.BaseURL)
	if err != nil {
		checks = append(checks, Check{Name: "api.origin", Pass: false, Message: err.Error()})
	} else {
		checks = append(checks, checkOrigin(base))
		checks = append(checks, checkAPIHealth(ctx, base))
	}

	if argv := cfg.Config.Display.PlayerCmd.Argv; len(argv) > 0 {
		checks = append(checks, checkExecutable("display.player_cmd", argv[0], "question video playback"))
	}
	if cfg.Config.Display.Notify {
		checks = append(checks, checkExecutable("busctl", "busctl", "desktop notifications"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	if cfg.Config.Media.Camera {
		checks = append(checks, checkCamera(cfg.Config.Media.CameraDevice))
	}

	return Report{Checks: checks}
}

// checkOrigin fails when microphone capture would be refused for base.
func checkOrigin(base endpoint.Base) Check {
	if base.Secure() {
		return Check{Name: "api.origin", Pass: true, Message: fmt.Sprintf("%s allows microphone capture", base)}
	}
	return Check{
		Name:    "api.origin",
		Pass:    false,
		Message: fmt.Sprintf("%s is neither https nor loopback; microphone capture will be refused", base),
	}
}

// checkAPIHealth probes GET /api/health and lists degraded services.
func checkAPIHealth(ctx context.Context, base endpoint.Base) Check {
	client := bootstrap.NewClient(base, healthTimeout, nil)
	health, err := client.Health(ctx)
	if err != nil {
		return Check{Name: "api.health", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	if health.OK() {
		return Check{Name: "api.health", Pass: true, Message: fmt.Sprintf("healthy at %s", base.API("api", "health"))}
	}

	degraded := make([]string, 0, len(health.Services))
	for name, status := range health.Services {
		if !strings.EqualFold(status, "ok") {
			degraded = append(degraded, name+"="+status)
		}
	}
	sort.Strings(degraded)
	message := fmt.Sprintf("status %q", health.Status)
	if len(degraded) > 0 {
		message += " (" + strings.Join(degraded, ", ") + ")"
	}
	return Check{Name: "api.health", Pass: false, Message: message}
}

// checkExecutable resolves bin the way exec.Command will when the session
// launches it.
func checkExecutable(name, bin, purpose string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s not found: %s needs it", bin, purpose)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s (%s)", path, purpose)}
}

// checkAudioSelection resolves audio.input/audio.fallback against the live
// devices of the configured backend.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	backend := audio.Backend(cfg.Audio.Backend)
	selection, err := audio.SelectDevice(ctx, backend, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: fmt.Sprintf("%s: %v", backend, err)}
	}
	message := fmt.Sprintf("%s input %q", backend, selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkCamera(device string) Check {
	if err := camera.Probe(device); err != nil {
		return Check{Name: "camera", Pass: false, Message: err.Error()}
	}
	if strings.TrimSpace(device) == "" {
		device = camera.DefaultDevice
	}
	return Check{Name: "camera", Pass: true, Message: fmt.Sprintf("%s is available", device)}
}
