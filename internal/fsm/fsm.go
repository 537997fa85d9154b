// Package fsm is the pure interview phase state machine.
package fsm

import "fmt"

// State is an interview phase.
type State string

// Event drives a State change.
type Event string

const (
	StateConnecting         State = "connecting"
	StateAwaitingGreeting   State = "awaiting_greeting"
	StatePresentingQuestion State = "presenting_question"
	StateListening          State = "listening"
	StateSubmitting         State = "submitting"
	StateAwaitingResults    State = "awaiting_results"
	StateCompleted          State = "completed"
	StateError              State = "error"
)

const (
	EventOpen           Event = "open"
	EventGreeting       Event = "greeting"
	EventQuestion       Event = "question"
	EventStartListening Event = "start_listening"
	EventStop           Event = "stop"
	EventResults        Event = "results"
	EventComplete       Event = "complete"
	EventFail           Event = "fail"
)

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// edges lists the per-state moves. Fail and results are accepted from any
// live state and are handled before the table is consulted.
var edges = map[State]map[Event]State{
	StateConnecting: {
		EventOpen: StateAwaitingGreeting,
	},
	StateAwaitingGreeting: {
		EventGreeting: StatePresentingQuestion,
		EventQuestion: StatePresentingQuestion,
	},
	StatePresentingQuestion: {
		EventQuestion:       StatePresentingQuestion,
		EventStartListening: StateListening,
	},
	StateListening: {
		EventStop:     StateSubmitting,
		EventQuestion: StatePresentingQuestion,
	},
	StateSubmitting: {
		EventQuestion: StatePresentingQuestion,
	},
	StateAwaitingResults: {
		EventComplete: StateCompleted,
	},
}

// Transition returns the state reached from current on event. On error the
// returned state is current.
func Transition(current State, event Event) (State, error) {
	if current.Terminal() {
		return current, &TransitionError{From: current, Event: event}
	}
	moves, known := edges[current]
	if !known {
		return current, fmt.Errorf("unknown state %q", current)
	}

	switch {
	case event == EventFail:
		return StateError, nil
	case event == EventResults && current != StateAwaitingResults:
		return StateAwaitingResults, nil
	}
	if next, ok := moves[event]; ok {
		return next, nil
	}
	return current, &TransitionError{From: current, Event: event}
}

// TransitionError is returned for an event the current state does not accept.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s --(%s)--> ?", e.From, e.Event)
}
