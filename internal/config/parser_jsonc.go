package config

import (
	"fmt"
	"strings"
)

// jsoncConfig mirrors Config with pointer fields so absent keys keep the
// base value.
type jsoncConfig struct {
	API       *jsoncAPI       `json:"api"`
	Interview *jsoncInterview `json:"interview"`
	Audio     *jsoncAudio     `json:"audio"`
	Media     *jsoncMedia     `json:"media"`
	Display   *jsoncDisplay   `json:"display"`
	Results   *jsoncResults   `json:"results"`
}

type jsoncAPI struct {
	BaseURL   *string `json:"base_url"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncInterview struct {
	QuestionCount    *int  `json:"question_count"`
	DurationMinutes  *int  `json:"duration_minutes"`
	MaxAnswerSeconds *int  `json:"max_answer_seconds"`
	ResultsFallback  *bool `json:"results_fallback"`
}

type jsoncAudio struct {
	Backend  *string `json:"backend"`
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncMedia struct {
	Camera       *bool   `json:"camera"`
	CameraDevice *string `json:"camera_device"`
	Preview      *bool   `json:"preview"`
}

type jsoncDisplay struct {
	PlayerCmd      *string `json:"player_cmd"`
	Notify         *bool   `json:"notify"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
}

type jsoncResults struct {
	Format  *string `json:"format"`
	Archive *bool   `json:"archive"`
}

// decodeOverlay strips JSONC syntax and decodes content into an overlay.
func decodeOverlay(content string) (jsoncConfig, error) {
	var payload jsoncConfig
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return payload, err
	}
	err = decodeStrict(normalized, &payload)
	return payload, err
}

// set copies *src into *dst when the key was present.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string, fold bool) {
	if src == nil {
		return
	}
	value := strings.TrimSpace(*src)
	if fold {
		value = strings.ToLower(value)
	}
	*dst = value
}

// applyTo writes every key present in payload onto cfg.
func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	var warnings []Warning

	if api := payload.API; api != nil {
		setTrimmed(&cfg.API.BaseURL, api.BaseURL, false)
		set(&cfg.API.TimeoutMS, api.TimeoutMS)
	}

	if iv := payload.Interview; iv != nil {
		set(&cfg.Interview.QuestionCount, iv.QuestionCount)
		set(&cfg.Interview.DurationMinutes, iv.DurationMinutes)
		set(&cfg.Interview.MaxAnswerSeconds, iv.MaxAnswerSeconds)
		set(&cfg.Interview.ResultsFallback, iv.ResultsFallback)
		// A duration without an explicit count replaces the default count.
		if iv.QuestionCount == nil && iv.DurationMinutes != nil && *iv.DurationMinutes > 0 {
			cfg.Interview.QuestionCount = 0
		}
	}

	if audio := payload.Audio; audio != nil {
		setTrimmed(&cfg.Audio.Backend, audio.Backend, true)
		set(&cfg.Audio.Input, audio.Input)
		set(&cfg.Audio.Fallback, audio.Fallback)
	}

	if media := payload.Media; media != nil {
		set(&cfg.Media.Camera, media.Camera)
		setTrimmed(&cfg.Media.CameraDevice, media.CameraDevice, false)
		set(&cfg.Media.Preview, media.Preview)
		if media.Preview != nil && *media.Preview && !cfg.Media.Camera {
			warnings = append(warnings, Warning{Message: "media.preview has no effect while media.camera=false"})
		}
	}

	if display := payload.Display; display != nil {
		if raw := display.PlayerCmd; raw != nil {
			argv, err := parseArgv(*raw)
			if err != nil {
				return nil, fmt.Errorf("invalid display.player_cmd: %w", err)
			}
			cfg.Display.PlayerCmd = CommandConfig{Raw: *raw, Argv: argv}
		}
		set(&cfg.Display.Notify, display.Notify)
		setTrimmed(&cfg.Display.DesktopAppName, display.DesktopAppName, false)
		set(&cfg.Display.SoundEnable, display.SoundEnable)
	}

	if results := payload.Results; results != nil {
		setTrimmed(&cfg.Results.Format, results.Format, true)
		set(&cfg.Results.Archive, results.Archive)
	}

	return warnings, nil
}
