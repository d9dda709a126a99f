package scheduling

import (
	"context"
	"fmt"
	"time"
)

// Calendar returns the times of a doctor's scheduled appointments in
// [from, to], skipping excludeID when it is non-zero. Implementations run on
// whatever transaction the caller holds.
type Calendar interface {
	Booked(ctx context.Context, doctorID uint, from, to time.Time, excludeID uint) ([]time.Time, error)
}

type Slot struct {
	Time    time.Time `json:"datetime"`
	Display string    `json:"display"`
}

type Request struct {
	DoctorID  uint
	Proposed  time.Time
	ExcludeID uint
}

type Result struct {
	Conflict     bool
	Alternatives []Slot
}

// ConflictError is returned by callers that treat a conflict as a failure.
type ConflictError struct {
	Proposed     time.Time
	Alternatives []Slot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot %s conflicts with an existing appointment", e.Proposed.Format(time.RFC3339))
}

type Checker struct {
	policy Policy
	now    func() time.Time
}

func NewChecker(policy Policy) *Checker {
	if policy.Suggestions <= 0 {
		policy.Suggestions = DefaultPolicy().Suggestions
	}
	if policy.HorizonDays <= 0 {
		policy.HorizonDays = DefaultPolicy().HorizonDays
	}
	if policy.SlotStep <= 0 {
		policy.SlotStep = DefaultPolicy().SlotStep
	}
	return &Checker{policy: policy, now: time.Now}
}

// WithClock replaces the clock used to skip past slots.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

func (c *Checker) Policy() Policy { return c.policy }

// Check validates business hours first, then looks for scheduled
// appointments within the conflict window. A conflict is reported in the
// result together with alternatives, not as an error.
func (c *Checker) Check(ctx context.Context, cal Calendar, req Request) (Result, error) {
	if err := c.policy.Validate(req.Proposed); err != nil {
		return Result{}, err
	}

	w := c.policy.ConflictWindow
	booked, err := cal.Booked(ctx, req.DoctorID, req.Proposed.Add(-w), req.Proposed.Add(w), req.ExcludeID)
	if err != nil {
		return Result{}, fmt.Errorf("scheduling: load bookings: %w", err)
	}
	if len(booked) == 0 {
		return Result{}, nil
	}

	alts, err := c.Alternatives(ctx, cal, req.DoctorID, req.Proposed, req.ExcludeID)
	if err != nil {
		return Result{}, err
	}
	return Result{Conflict: true, Alternatives: alts}, nil
}

// Alternatives scans forward from opening time on the preferred day, one
// day at a time, and returns up to Policy.Suggestions free future slots.
func (c *Checker) Alternatives(ctx context.Context, cal Calendar, doctorID uint, preferred time.Time, excludeID uint) ([]Slot, error) {
	p := c.policy
	loc := p.location()
	local := preferred.In(loc)
	y, m, d := local.Date()

	first := time.Date(y, m, d, p.OpenHour, 0, 0, 0, loc)
	last := time.Date(y, m, d+p.HorizonDays-1, p.CloseHour, 0, 0, 0, loc)

	booked, err := cal.Booked(ctx, doctorID, first.Add(-p.SlotBefore), last.Add(p.SlotAfter), excludeID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load bookings: %w", err)
	}

	now := c.now()
	alts := make([]Slot, 0, p.Suggestions)
	for offset := 0; offset < p.HorizonDays; offset++ {
		open := time.Date(y, m, d+offset, p.OpenHour, 0, 0, 0, loc)
		if open.Weekday() == p.ClosedDay {
			continue
		}
		closing := time.Date(y, m, d+offset, p.CloseHour, 0, 0, 0, loc)

		for slot := open; slot.Before(closing); slot = slot.Add(p.SlotStep) {
			if !slot.After(now) {
				continue
			}
			if overlaps(booked, slot.Add(-p.SlotBefore), slot.Add(p.SlotAfter)) {
				continue
			}
			alts = append(alts, Slot{Time: slot.UTC(), Display: p.Display(slot)})
			if len(alts) >= p.Suggestions {
				return alts, nil
			}
		}
	}
	return alts, nil
}

func overlaps(booked []time.Time, from, to time.Time) bool {
	for _, b := range booked {
		if !b.Before(from) && !b.After(to) {
			return true
		}
	}
	return false
}
