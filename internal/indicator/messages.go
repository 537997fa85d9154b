package indicator

import "github.com/rbright/parley/internal/fsm"

// messages holds the console copy. Only English ships today.
type messages struct {
	phases      map[fsm.State]string
	transcript  string
	score       string
	errorPrefix string
	errorText   string
}

var englishMessages = messages{
	phases: map[fsm.State]string{
		fsm.StateConnecting:         "Connecting to the interviewer…",
		fsm.StateAwaitingGreeting:   "Waiting for the interviewer…",
		fsm.StatePresentingQuestion: "Interviewer is asking…",
		fsm.StateListening:          "Listening… press Enter to submit your answer",
		fsm.StateSubmitting:         "Submitting answer…",
		fsm.StateAwaitingResults:    "Compiling results…",
		fsm.StateCompleted:          "Interview complete",
		fsm.StateError:              "Interview ended with an error",
	},
	transcript:  "You said:",
	score:       "Score:",
	errorPrefix: "Error:",
	errorText:   "Interview error",
}

// phase returns the banner for state, or "" for states with no banner.
func (m messages) phase(state fsm.State) string {
	return m.phases[state]
}
