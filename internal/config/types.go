// Package config resolves, parses, validates, and defaults parley configuration.
package config

// Config is the fully materialized runtime configuration used by parley.
type Config struct {
	API       APIConfig
	Interview InterviewConfig
	Audio     AudioConfig
	Media     MediaConfig
	Display   DisplayConfig
	Results   ResultsConfig
}

// APIConfig selects the single backend origin every HTTP and WebSocket URL
// derives from.
type APIConfig struct {
	BaseURL   string
	TimeoutMS int
}

// InterviewConfig holds setup defaults and answer limits.
type InterviewConfig struct {
	QuestionCount    int
	DurationMinutes  int
	MaxAnswerSeconds int
	ResultsFallback  bool
}

// AudioConfig controls backend and preferred/fallback input-source selection.
type AudioConfig struct {
	Backend  string
	Input    string
	Fallback string
}

// MediaConfig controls the local camera preview.
type MediaConfig struct {
	Camera       bool
	CameraDevice string
	Preview      bool
}

// DisplayConfig controls how videos, notifications, and cues are surfaced.
type DisplayConfig struct {
	PlayerCmd      CommandConfig
	Notify         bool
	DesktopAppName string
	SoundEnable    bool
}

// ResultsConfig controls rendering and the local archive.
type ResultsConfig struct {
	Format  string
	Archive bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
