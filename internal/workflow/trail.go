package workflow

import (
	"strings"
	"time"
)

const Separator = " | "

// Trail markers. Clients and legacy rows match on these substrings.
const (
	MarkerRequested     = "Booking requested"
	MarkerScheduled     = "Scheduled at"
	MarkerScheduledWord = "Scheduled"
	MarkerConfirmed     = "CONFIRMED"
	MarkerRejected      = "REJECTED"
	MarkerCompleted     = "COMPLETED"
	MarkerCancelled     = "CANCELLED"
)

// Append adds entry to trail. Earlier entries are never rewritten.
func Append(trail string, entries ...string) string {
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if trail == "" {
			trail = e
			continue
		}
		trail += Separator + e
	}
	return trail
}

// Entries splits a trail into its entries.
func Entries(trail string) []string {
	if trail == "" {
		return []string{}
	}
	return strings.Split(trail, Separator)
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

func RequestedEntry(at time.Time) string {
	return MarkerRequested + " at " + stamp(at)
}

func ScheduledEntry(at time.Time) string {
	return MarkerScheduled + " " + stamp(at)
}

func ConfirmedEntry(at time.Time) string {
	return MarkerConfirmed + " by doctor at " + stamp(at)
}

func RejectedEntry(at time.Time) string {
	return MarkerRejected + " by doctor at " + stamp(at)
}

func CompletedEntry(at time.Time) string {
	return MarkerCompleted + " by doctor at " + stamp(at)
}

func CancelledEntry(role string, at time.Time) string {
	return MarkerCancelled + " by " + role + " at " + stamp(at)
}

func DoctorNotesEntry(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return ""
	}
	return "Doctor notes: " + strings.TrimSpace(notes)
}

func RejectionReasonEntry(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return ""
	}
	return "Rejection reason: " + strings.TrimSpace(notes)
}

func NoteEntry(role, notes string) string {
	if strings.TrimSpace(notes) == "" {
		return ""
	}
	return "Note by " + role + ": " + strings.TrimSpace(notes)
}
