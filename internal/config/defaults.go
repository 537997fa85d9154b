package config

// DefaultBaseURL is the backend's local development origin.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			TimeoutMS: 15000,
		},
		Interview: InterviewConfig{
			QuestionCount:    5,
			MaxAnswerSeconds: 30,
			ResultsFallback:  true,
		},
		Audio: AudioConfig{
			Backend:  "auto",
			Input:    "default",
			Fallback: "default",
		},
		Media: MediaConfig{
			Camera:       false,
			CameraDevice: "/dev/video0",
			Preview:      true,
		},
		Display: DisplayConfig{
			Notify:         false,
			DesktopAppName: "parley",
			SoundEnable:    true,
		},
		Results: ResultsConfig{
			Format:  "text",
			Archive: true,
		},
	}
}
