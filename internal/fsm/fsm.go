// Package fsm defines the recitation session lifecycle.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateComplete  State = "complete"
	StateError     State = "error"
)

const (
	EventStart    Event = "start"
	EventStop     Event = "stop"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

// ErrInvalidTransition is wrapped by Transition when event is not accepted in the current state.
var ErrInvalidTransition = errors.New("invalid transition")

// edges lists accepted events per state. EventFail is accepted everywhere.
var edges = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateListening,
		EventReset: StateIdle,
	},
	StateListening: {
		EventStop:     StateIdle,
		EventComplete: StateComplete,
	},
	StateComplete: {EventReset: StateIdle},
	StateError:    {EventReset: StateIdle},
}

// Transition returns the state reached from current on event. On error the
// state is unchanged.
func Transition(current State, event Event) (State, error) {
	accepted, known := edges[current]
	if !known {
		return current, fmt.Errorf("unknown state %q", current)
	}
	if event == EventFail {
		return StateError, nil
	}
	next, ok := accepted[event]
	if !ok {
		return current, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, current, event)
	}
	return next, nil
}

// Accepts reports whether event is valid in state.
func Accepts(state State, event Event) bool {
	_, err := Transition(state, event)
	return err == nil
}
