package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name  string
		trail string
		want  Status
	}{
		{"requested only", "Booking requested at 2025-01-06T09:00:00Z", StatusBookingRequested},
		{"scheduled", "Booking requested at 2025-01-06T09:00:00Z | Scheduled at 2025-01-06T09:00:01Z", StatusScheduledPendingConfirmation},
		{"confirmed", "Booking requested at x | Scheduled at y | CONFIRMED by doctor at z", StatusConfirmed},
		{"rejected", "Booking requested at x | Scheduled at y | REJECTED by doctor at z", StatusRejected},
		{"empty", "", StatusUnknown},
		{"no request marker", "Scheduled at y | CONFIRMED by doctor at z", StatusUnknown},
		{"confirmed wins over rejected", "Booking requested | REJECTED | CONFIRMED", StatusConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.trail))
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusBookingRequested, StatusOf(StateRequested, ""))
	assert.Equal(t, StatusScheduledPendingConfirmation, StatusOf(StateScheduled, ""))
	assert.Equal(t, StatusConfirmed, StatusOf(StateConfirmed, ""))
	assert.Equal(t, StatusRejected, StatusOf(StateRejected, ""))
	assert.Equal(t, StatusCompleted, StatusOf(StateCompleted, ""))
	assert.Equal(t, StatusCancelled, StatusOf(StateCancelled, ""))

	// state wins over trail text
	assert.Equal(t, StatusScheduledPendingConfirmation, StatusOf(StateScheduled, "Booking requested | Note by patient: CONFIRMED?"))

	// empty state falls back to the trail
	assert.Equal(t, StatusConfirmed, StatusOf("", "Booking requested | Scheduled at y | CONFIRMED by doctor at z"))
	assert.Equal(t, StatusUnknown, StatusOf("", ""))
}

func TestTransitions(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateRequested, StateScheduled},
		{StateRequested, StateRequested},
		{StateRequested, StateRejected},
		{StateScheduled, StateConfirmed},
		{StateScheduled, StateRejected},
		{StateScheduled, StateScheduled},
		{StateConfirmed, StateCompleted},
		{StateConfirmed, StateCancelled},
		{StateScheduled, StateCancelled},
	}
	for _, tc := range allowed {
		require.NoError(t, Transition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to State }{
		{StateRequested, StateConfirmed},
		{StateConfirmed, StateConfirmed},
		{StateConfirmed, StateRejected},
		{StateRejected, StateRejected},
		{StateRejected, StateConfirmed},
		{StateCompleted, StateCancelled},
		{StateCancelled, StateScheduled},
		{StateScheduled, StateCompleted},
	}
	for _, tc := range denied {
		err := Transition(tc.from, tc.to)
		require.Error(t, err, "%s -> %s", tc.from, tc.to)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	}

	assert.True(t, StateRejected.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.False(t, StateConfirmed.Terminal())
	assert.True(t, StateConfirmed.Decided())
	assert.False(t, StateScheduled.Decided())
	assert.False(t, State("bogus").Valid())
}

func TestInfer(t *testing.T) {
	assert.Equal(t, StateRequested, Infer("Booking requested at x"))
	assert.Equal(t, StateScheduled, Infer("Booking requested at x | Scheduled at y"))
	assert.Equal(t, StateConfirmed, Infer("Booking requested at x | Scheduled at y | CONFIRMED by doctor at z"))
	assert.Equal(t, StateRejected, Infer("Booking requested at x | REJECTED by doctor at z"))
}

func TestTrailAppendOnly(t *testing.T) {
	at := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	trail := Append("", RequestedEntry(at))
	assert.Equal(t, "Booking requested at 2025-01-06T09:00:00Z", trail)

	trail = Append(trail, ScheduledEntry(at), DoctorNotesEntry("  "))
	trail = Append(trail, ConfirmedEntry(at), DoctorNotesEntry("bring x-rays"))

	entries := Entries(trail)
	require.Len(t, entries, 4)
	assert.Equal(t, "Booking requested at 2025-01-06T09:00:00Z", entries[0])
	assert.Equal(t, "Scheduled at 2025-01-06T09:00:00Z", entries[1])
	assert.Equal(t, "CONFIRMED by doctor at 2025-01-06T09:00:00Z", entries[2])
	assert.Equal(t, "Doctor notes: bring x-rays", entries[3])

	assert.Empty(t, Entries(""))
	assert.True(t, AwaitingDoctor("Booking requested | Scheduled at y"))
	assert.False(t, AwaitingDoctor(trail))
	assert.False(t, AwaitingDoctor("Booking requested at x"))
}
