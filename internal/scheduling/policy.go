// Package scheduling decides whether a doctor can take an appointment at a
// proposed time and suggests nearby free slots when it cannot.
package scheduling

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOutsideBusinessHours = errors.New("appointment time outside business hours")
	ErrClosedDay            = errors.New("appointments not available on this day")
)

// Policy holds the clinic calendar rules.
type Policy struct {
	Location  *time.Location
	OpenHour  int
	CloseHour int
	ClosedDay time.Weekday

	// ConflictWindow is applied on both sides of a proposed time.
	ConflictWindow time.Duration

	// A suggested slot is free when nothing is booked in [slot-SlotBefore, slot+SlotAfter].
	SlotBefore time.Duration
	SlotAfter  time.Duration
	SlotStep   time.Duration

	Suggestions int
	HorizonDays int
}

func DefaultPolicy() Policy {
	return Policy{
		Location:       time.UTC,
		OpenHour:       8,
		CloseHour:      18,
		ClosedDay:      time.Sunday,
		ConflictWindow: 30 * time.Minute,
		SlotBefore:     15 * time.Minute,
		SlotAfter:      45 * time.Minute,
		SlotStep:       30 * time.Minute,
		Suggestions:    3,
		HorizonDays:    7,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Validate checks t against business hours and the closed day, in the
// clinic's location.
func (p Policy) Validate(t time.Time) error {
	local := t.In(p.location())
	if local.Weekday() == p.ClosedDay {
		return fmt.Errorf("%w: %s", ErrClosedDay, local.Weekday())
	}
	if local.Hour() < p.OpenHour || local.Hour() >= p.CloseHour {
		return fmt.Errorf("%w (%02d:00 - %02d:00)", ErrOutsideBusinessHours, p.OpenHour, p.CloseHour)
	}
	return nil
}

// Display renders t the way it is shown to patients.
func (p Policy) Display(t time.Time) string {
	return t.In(p.location()).Format("Monday, January 02 at 03:04 PM")
}
