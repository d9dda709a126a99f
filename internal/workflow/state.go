// Package workflow models the appointment booking workflow: the persisted
// state machine, the append-only annotation trail, and the text classifier
// used for rows that predate the state column.
package workflow

import (
	"errors"
	"fmt"
)

// State is the persisted workflow position of an appointment.
type State string

const (
	StateRequested State = "requested"
	StateScheduled State = "scheduled"
	StateConfirmed State = "confirmed"
	StateRejected  State = "rejected"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid workflow transition")

// transitions lists the states reachable from each state. Requested and
// scheduled may move to themselves so a patient can re-propose a time.
var transitions = map[State][]State{
	StateRequested: {StateRequested, StateScheduled, StateRejected, StateCancelled},
	StateScheduled: {StateScheduled, StateConfirmed, StateRejected, StateCancelled},
	StateConfirmed: {StateCompleted, StateCancelled},
}

// Can reports whether next is reachable from s.
func (s State) Can(next State) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Decided reports whether the doctor already confirmed or rejected.
func (s State) Decided() bool {
	switch s {
	case StateConfirmed, StateRejected, StateCompleted:
		return true
	}
	return false
}

func (s State) Valid() bool {
	switch s {
	case StateRequested, StateScheduled, StateConfirmed, StateRejected, StateCompleted, StateCancelled:
		return true
	}
	return false
}

// Transition validates moving from -> to.
func Transition(from, to State) error {
	if !from.Can(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Infer reconstructs a state from a legacy trail. It is used to backfill rows
// written before the state column existed.
func Infer(trail string) State {
	switch Derive(trail) {
	case StatusConfirmed:
		return StateConfirmed
	case StatusRejected:
		return StateRejected
	case StatusScheduledPendingConfirmation:
		return StateScheduled
	default:
		return StateRequested
	}
}
