package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/narrator"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/scheduling"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("clinic.internal.apps.appointments")

const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
)

// Orchestrator runs the booking and confirmation workflows. Each step runs
// in order and blocks the request; state changes commit in one transaction
// before notifications and narration.
type Orchestrator struct {
	store    Store
	checker  *scheduling.Checker
	notifier *notify.Notifier
	narrator *narrator.Narrator
	metrics  *metrics.WorkflowMetrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(store Store, checker *scheduling.Checker, notifier *notify.Notifier, narr *narrator.Narrator, m *metrics.WorkflowMetrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewNotifier(nil, nil, logger)
	}
	return &Orchestrator{
		store:    store,
		checker:  checker,
		notifier: notifier,
		narrator: narr,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for trail timestamps and past-date checks.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.checker.WithClock(now)
	return o
}

type BookRequest struct {
	DoctorID      uint   `json:"doctor_id"`
	PreferredDate string `json:"preferred_date"`
	Reason        string `json:"reason"`
}

type RescheduleRequest struct {
	PreferredDate string `json:"preferred_date"`
}

type BookResult struct {
	Success        bool                  `json:"success"`
	Conflict       bool                  `json:"conflict"`
	Message        string                `json:"message"`
	WorkflowStatus workflow.Status       `json:"workflow_status"`
	AppointmentID  uint                  `json:"appointment_id"`
	ScheduledTime  *time.Time            `json:"scheduled_time,omitempty"`
	DoctorName     string                `json:"doctor_name"`
	Alternatives   []scheduling.Slot     `json:"alternatives,omitempty"`
	Notifications  []notify.Notification `json:"notifications"`
	Narrative      narrator.Narrative    `json:"narrative"`
	NextSteps      string                `json:"next_steps,omitempty"`
}

type ConfirmRequest struct {
	AppointmentID uint   `json:"appointment_id"`
	Action        string `json:"action"`
	Notes         string `json:"notes"`
}

type ConfirmResult struct {
	Success            bool                  `json:"success"`
	Message            string                `json:"message"`
	AppointmentID      uint                  `json:"appointment_id"`
	Action             string                `json:"action"`
	ConfirmationStatus workflow.Status       `json:"confirmation_status"`
	PatientName        string                `json:"patient_name"`
	AppointmentTime    time.Time             `json:"appointment_time"`
	DoctorNotes        string                `json:"doctor_notes"`
	PatientNotified    bool                  `json:"patient_notified"`
	Notifications      []notify.Notification `json:"notifications"`
	Narrative          narrator.Narrative    `json:"narrative"`
}

type BatchItem struct {
	AppointmentID uint   `json:"appointment_id"`
	Action        string `json:"action"`
	Status        string `json:"status"`
}

type BatchResult struct {
	Success        bool        `json:"success"`
	ProcessedCount int         `json:"processed_count"`
	Results        []BatchItem `json:"results"`
	Errors         []string    `json:"errors"`
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseProposed accepts RFC 3339 or a zone-less local time, which is read in
// the clinic's location.
func ParseProposed(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: preferred_date is required", ErrInvalidDate)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// proposal parses and validates a proposed time before anything is written.
func (o *Orchestrator) proposal(raw string) (time.Time, error) {
	policy := o.checker.Policy()
	proposed, err := ParseProposed(raw, policy.Location)
	if err != nil {
		return time.Time{}, err
	}
	if !proposed.After(o.now()) {
		return time.Time{}, ErrPastDate
	}
	if err := policy.Validate(proposed); err != nil {
		return time.Time{}, err
	}
	return proposed, nil
}

func applySchedule(appt *Appointment, proposed, now time.Time) error {
	if err := workflow.Transition(appt.State(), workflow.StateScheduled); err != nil {
		return err
	}
	appt.AppointmentDate = proposed.UTC()
	appt.WorkflowState = workflow.StateScheduled
	appt.Notes = workflow.Append(appt.Notes, workflow.ScheduledEntry(now))
	return nil
}

func partyOf(u *models.User) notify.Party {
	if u == nil {
		return notify.Party{}
	}
	return notify.Party{Name: u.FullName, Email: u.Email}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Book creates a requested appointment and schedules it when the slot is
// free. On conflict the requested record is kept and the result carries
// alternatives; the patient can reschedule it.
func (o *Orchestrator) Book(ctx context.Context, actor Actor, req BookRequest) (result *BookResult, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "appointments.book", trace.WithAttributes(
		attribute.Int64("clinic.doctor_id", int64(req.DoctorID)),
		attribute.Int64("clinic.patient_id", int64(actor.ID)),
	))
	defer func() { endSpan(span, err) }()
	defer o.metrics.ObserveDuration("booking", started)

	if !actor.IsPatient() {
		return nil, ErrForbiddenRole
	}
	proposed, err := o.proposal(req.PreferredDate)
	if err != nil {
		o.metrics.ObserveBooking("booking", "invalid")
		return nil, err
	}

	var (
		appt     *Appointment
		conflict scheduling.Result
	)
	err = o.store.Transaction(ctx, func(tx Store) error {
		patient, doctor, err := loadParties(ctx, tx, actor.ID, req.DoctorID)
		if err != nil {
			return err
		}

		now := o.now().UTC()
		appt = &Appointment{
			PatientID:       patient.ID,
			DoctorID:        doctor.ID,
			AppointmentDate: proposed,
			Status:          StatusScheduled,
			WorkflowState:   workflow.StateRequested,
			Notes:           workflow.RequestedEntry(now),
		}
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			appt.Reason = &reason
		}
		if err := tx.Create(ctx, appt); err != nil {
			return err
		}
		appt.Patient, appt.Doctor = patient, doctor

		res, err := o.checker.Check(ctx, tx, scheduling.Request{DoctorID: doctor.ID, Proposed: proposed, ExcludeID: appt.ID})
		if err != nil {
			return err
		}
		if res.Conflict {
			conflict = res
			return nil
		}
		if err := applySchedule(appt, proposed, now); err != nil {
			return err
		}
		return tx.Save(ctx, appt)
	})
	if err != nil {
		o.metrics.ObserveBooking("booking", "error")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("clinic.appointment_id", int64(appt.ID)))
	return o.scheduledOrConflict(ctx, "booking", appt, conflict), nil
}

// Reschedule re-proposes a time for the patient's own requested or
// scheduled appointment.
func (o *Orchestrator) Reschedule(ctx context.Context, actor Actor, id uint, req RescheduleRequest) (result *BookResult, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "appointments.reschedule", trace.WithAttributes(
		attribute.Int64("clinic.appointment_id", int64(id)),
	))
	defer func() { endSpan(span, err) }()
	defer o.metrics.ObserveDuration("reschedule", started)

	if !actor.IsPatient() {
		return nil, ErrForbiddenRole
	}
	proposed, err := o.proposal(req.PreferredDate)
	if err != nil {
		o.metrics.ObserveBooking("reschedule", "invalid")
		return nil, err
	}

	var (
		appt     *Appointment
		conflict scheduling.Result
	)
	err = o.store.Transaction(ctx, func(tx Store) error {
		found, err := tx.Find(ctx, id)
		if err != nil {
			return err
		}
		if found.PatientID != actor.ID {
			return ErrNotOwner
		}
		if err := workflow.Transition(found.State(), workflow.StateScheduled); err != nil {
			return err
		}
		appt = found

		res, err := o.checker.Check(ctx, tx, scheduling.Request{DoctorID: appt.DoctorID, Proposed: proposed, ExcludeID: appt.ID})
		if err != nil {
			return err
		}
		if res.Conflict {
			conflict = res
			return nil
		}
		if err := applySchedule(appt, proposed, o.now().UTC()); err != nil {
			return err
		}
		return tx.Save(ctx, appt)
	})
	if err != nil {
		o.metrics.ObserveBooking("reschedule", "error")
		return nil, err
	}

	return o.scheduledOrConflict(ctx, "reschedule", appt, conflict), nil
}

func (o *Orchestrator) scheduledOrConflict(ctx context.Context, name string, appt *Appointment, conflict scheduling.Result) *BookResult {
	policy := o.checker.Policy()
	result := &BookResult{
		AppointmentID:  appt.ID,
		DoctorName:     appt.doctorName(),
		WorkflowStatus: appt.WorkflowStatus(),
		Notifications:  []notify.Notification{},
	}
	summary := narrator.Summary{
		Workflow:    name,
		PatientName: appt.patientName(),
		DoctorName:  appt.doctorName(),
	}

	if conflict.Conflict {
		o.metrics.ObserveBooking(name, "conflict")
		o.metrics.ObserveConflict(name)
		o.logger.Info("appointment slot conflict", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "action", name)

		result.Conflict = true
		result.Message = "Time slot conflicts with existing appointment"
		result.Alternatives = conflict.Alternatives
		result.NextSteps = "Choose one of the alternative times and reschedule this appointment"
		summary.Outcome = "conflict"
		for _, alt := range conflict.Alternatives {
			summary.Alternatives = append(summary.Alternatives, alt.Display)
		}
	} else {
		o.metrics.ObserveBooking(name, "scheduled")
		o.logger.Info("appointment scheduled", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "action", name)

		scheduled := appt.AppointmentDate
		result.Success = true
		result.Message = "Appointment successfully scheduled"
		result.ScheduledTime = &scheduled
		result.NextSteps = "Doctor will review and confirm your appointment request"
		summary.Outcome = "scheduled"
		summary.Date = policy.Display(scheduled)

		ev := o.event(appt, notify.MessageScheduled)
		result.Notifications = append(result.Notifications, o.notifier.Notify(ctx, ev, notify.ToPatient)...)
		ev.Type = notify.MessageBookingRequested
		result.Notifications = append(result.Notifications, o.notifier.Notify(ctx, ev, notify.ToDoctor)...)
	}

	result.Narrative = o.narrate(ctx, summary)
	return result
}

func (o *Orchestrator) event(appt *Appointment, typ notify.MessageType) notify.Event {
	return notify.Event{
		Type:          typ,
		AppointmentID: appt.ID,
		Date:          appt.AppointmentDate,
		Patient:       partyOf(appt.Patient),
		Doctor:        partyOf(appt.Doctor),
	}
}

func (o *Orchestrator) narrate(ctx context.Context, s narrator.Summary) narrator.Narrative {
	n := o.narrator.Narrate(ctx, s)
	o.metrics.ObserveNarration(n.Source)
	return n
}

// Confirm applies a doctor's confirm or reject decision. A second decision
// on the same appointment returns ErrAlreadyDecided and changes nothing.
func (o *Orchestrator) Confirm(ctx context.Context, actor Actor, req ConfirmRequest) (result *ConfirmResult, err error) {
	started := time.Now()
	action := strings.ToLower(strings.TrimSpace(req.Action))
	ctx, span := tracer.Start(ctx, "appointments.confirm", trace.WithAttributes(
		attribute.Int64("clinic.appointment_id", int64(req.AppointmentID)),
		attribute.String("clinic.action", action),
	))
	defer func() {
		endSpan(span, err)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		o.metrics.ObserveDecision(action, outcome)
	}()
	defer o.metrics.ObserveDuration("confirm", started)

	if !actor.IsDoctor() {
		return nil, ErrForbiddenRole
	}
	if action != ActionConfirm && action != ActionReject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	var appt *Appointment
	err = o.store.Transaction(ctx, func(tx Store) error {
		found, err := tx.Find(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		if found.DoctorID != actor.ID {
			return ErrNotAppointmentDoctor
		}
		state := found.State()
		if state.Decided() {
			return fmt.Errorf("%w: %s", ErrAlreadyDecided, state)
		}

		now := o.now().UTC()
		switch action {
		case ActionConfirm:
			if err := workflow.Transition(state, workflow.StateConfirmed); err != nil {
				return err
			}
			found.WorkflowState = workflow.StateConfirmed
			found.Notes = workflow.Append(found.Notes, workflow.ConfirmedEntry(now), workflow.DoctorNotesEntry(req.Notes))
		case ActionReject:
			if err := workflow.Transition(state, workflow.StateRejected); err != nil {
				return err
			}
			found.Status = StatusCancelled
			found.WorkflowState = workflow.StateRejected
			found.Notes = workflow.Append(found.Notes, workflow.RejectedEntry(now), workflow.RejectionReasonEntry(req.Notes))
		}
		if err := tx.Save(ctx, found); err != nil {
			return err
		}
		appt = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("appointment decision recorded", "appointment_id", appt.ID, "user_id", actor.ID, "action", action)

	result = &ConfirmResult{
		Success:            true,
		AppointmentID:      appt.ID,
		Action:             action,
		ConfirmationStatus: appt.WorkflowStatus(),
		PatientName:        appt.patientName(),
		AppointmentTime:    appt.AppointmentDate,
		DoctorNotes:        strings.TrimSpace(req.Notes),
	}
	msgType := notify.MessageConfirmed
	result.Message = "Appointment confirmed by doctor"
	outcome := "confirmed"
	if action == ActionReject {
		msgType = notify.MessageRejected
		result.Message = "Appointment rejected by doctor"
		outcome = "rejected"
	}

	result.Notifications = o.notifier.Notify(ctx, o.event(appt, msgType), notify.ToBoth)
	for _, n := range result.Notifications {
		if n.RecipientType == string(notify.ToPatient) && n.Delivered {
			result.PatientNotified = true
		}
	}
	result.Narrative = o.narrate(ctx, narrator.Summary{
		Workflow:    "confirmation",
		Outcome:     outcome,
		PatientName: appt.patientName(),
		DoctorName:  appt.doctorName(),
		Date:        o.checker.Policy().Display(appt.AppointmentDate),
		Notes:       strings.TrimSpace(req.Notes),
	})
	return result, nil
}

// BatchConfirm processes each request on its own. One failure does not stop
// the rest.
func (o *Orchestrator) BatchConfirm(ctx context.Context, actor Actor, reqs []ConfirmRequest) (*BatchResult, error) {
	if !actor.IsDoctor() {
		return nil, ErrForbiddenRole
	}

	out := &BatchResult{Results: []BatchItem{}, Errors: []string{}}
	for _, req := range reqs {
		if _, err := o.Confirm(ctx, actor, req); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrNotAppointmentDoctor) {
				out.Errors = append(out.Errors, fmt.Sprintf("Appointment %d not found or not authorized", req.AppointmentID))
				continue
			}
			out.Errors = append(out.Errors, fmt.Sprintf("Failed to process appointment %d: %s", req.AppointmentID, err))
			continue
		}
		out.Results = append(out.Results, BatchItem{
			AppointmentID: req.AppointmentID,
			Action:        strings.ToLower(strings.TrimSpace(req.Action)),
			Status:        "processed",
		})
	}
	out.ProcessedCount = len(out.Results)
	out.Success = len(out.Errors) == 0
	return out, nil
}
