package config

import (
	"fmt"
	"strings"

	"github.com/rbright/parley/internal/endpoint"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return nil, fmt.Errorf("api.base_url must not be empty")
	}
	base, err := endpoint.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api.base_url: %w", err)
	}
	if !base.Secure() {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("api.base_url %q is neither https nor loopback; microphone capture will be refused", cfg.API.BaseURL)})
	}
	if cfg.API.TimeoutMS <= 0 {
		return nil, fmt.Errorf("api.timeout_ms must be > 0")
	}

	iv := cfg.Interview
	if iv.QuestionCount < 0 || iv.QuestionCount > 20 {
		return nil, fmt.Errorf("interview.question_count must be between 0 and 20")
	}
	if iv.DurationMinutes != 0 && (iv.DurationMinutes < 3 || iv.DurationMinutes > 60) {
		return nil, fmt.Errorf("interview.duration_minutes must be 0 or between 3 and 60")
	}
	if iv.QuestionCount > 0 && iv.DurationMinutes > 0 {
		return nil, fmt.Errorf("interview.question_count and interview.duration_minutes are mutually exclusive")
	}
	if iv.MaxAnswerSeconds <= 0 || iv.MaxAnswerSeconds > 600 {
		return nil, fmt.Errorf("interview.max_answer_seconds must be between 1 and 600")
	}
	if iv.MaxAnswerSeconds > 120 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("interview.max_answer_seconds=%d produces large uploads", iv.MaxAnswerSeconds)})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Audio.Backend)) {
	case "auto", "pulse", "portaudio":
	default:
		return nil, fmt.Errorf("audio.backend must be one of: auto, pulse, portaudio")
	}

	if cfg.Media.Camera && strings.TrimSpace(cfg.Media.CameraDevice) == "" {
		return nil, fmt.Errorf("media.camera_device must not be empty when media.camera=true")
	}

	if cfg.Display.PlayerCmd.Raw != "" && len(cfg.Display.PlayerCmd.Argv) == 0 {
		return nil, fmt.Errorf("display.player_cmd is configured but empty")
	}
	if cfg.Display.Notify && strings.TrimSpace(cfg.Display.DesktopAppName) == "" {
		return nil, fmt.Errorf("display.desktop_app_name must not be empty when display.notify=true")
	}

	switch cfg.Results.Format {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("results.format must be one of: text, json, yaml")
	}

	return warnings, nil
}
