package workflow

import "strings"

// Status is the client-facing workflow classification.
type Status string

const (
	StatusUnknown                      Status = "unknown"
	StatusBookingRequested             Status = "booking_requested"
	StatusScheduledPendingConfirmation Status = "scheduled_pending_confirmation"
	StatusConfirmed                    Status = "confirmed"
	StatusRejected                     Status = "rejected"
	StatusCompleted                    Status = "completed"
	StatusCancelled                    Status = "cancelled"
)

// Derive classifies a trail by marker presence. Precedence matters: a trail
// that was scheduled and then confirmed contains both markers.
func Derive(trail string) Status {
	if !strings.Contains(trail, MarkerRequested) {
		return StatusUnknown
	}
	switch {
	case strings.Contains(trail, MarkerConfirmed):
		return StatusConfirmed
	case strings.Contains(trail, MarkerRejected):
		return StatusRejected
	case strings.Contains(trail, MarkerScheduledWord):
		return StatusScheduledPendingConfirmation
	default:
		return StatusBookingRequested
	}
}

// StatusOf maps a persisted state to a Status, deriving from the trail when
// the state is empty.
func StatusOf(state State, trail string) Status {
	switch state {
	case StateRequested:
		return StatusBookingRequested
	case StateScheduled:
		return StatusScheduledPendingConfirmation
	case StateConfirmed:
		return StatusConfirmed
	case StateRejected:
		return StatusRejected
	case StateCompleted:
		return StatusCompleted
	case StateCancelled:
		return StatusCancelled
	}
	return Derive(trail)
}

// AwaitingDoctor reports whether a legacy trail was scheduled but has no
// decision yet.
func AwaitingDoctor(trail string) bool {
	return strings.Contains(trail, MarkerScheduled) &&
		!strings.Contains(trail, MarkerConfirmed) &&
		!strings.Contains(trail, MarkerRejected)
}
