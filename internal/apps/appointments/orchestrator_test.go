package appointments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/narrator"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/scheduling"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	doctorHouse  uint = 1
	doctorWilson uint = 2
	patientJane  uint = 10
	patientJohn  uint = 11
)

// Friday 2025-01-03 12:00 UTC.
var fixedNow = time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)

var (
	houseActor  = Actor{ID: doctorHouse, Role: models.RoleDoctor}
	wilsonActor = Actor{ID: doctorWilson, Role: models.RoleDoctor}
	janeActor   = Actor{ID: patientJane, Role: models.RolePatient}
	johnActor   = Actor{ID: patientJohn, Role: models.RolePatient}
)

type recordingSender struct {
	sent []notify.EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg notify.EmailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type fixture struct {
	store  *memStore
	orch   *Orchestrator
	svc    *Service
	sender *recordingSender
	reg    *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	store.clock = func() time.Time { return fixedNow }
	store.addUser(doctorHouse, models.RoleDoctor, "Gregory House")
	store.addUser(doctorWilson, models.RoleDoctor, "James Wilson")
	store.addUser(patientJane, models.RolePatient, "Jane Roe")
	store.addUser(patientJohn, models.RolePatient, "John Doe")

	sender := &recordingSender{}
	clock := func() time.Time { return fixedNow }
	notifier := notify.NewNotifier(notify.NewFormatter(time.UTC), sender, nil).WithClock(clock)
	reg := prometheus.NewRegistry()

	orch := NewOrchestrator(store, scheduling.NewChecker(scheduling.DefaultPolicy()), notifier, nil, metrics.NewWorkflowMetrics(reg), nil).
		WithClock(clock)
	svc := NewService(store, scheduling.DefaultPolicy()).WithClock(clock)

	return &fixture{store: store, orch: orch, svc: svc, sender: sender, reg: reg}
}

// scheduledAt seeds an appointment that is scheduled and awaiting the doctor.
func (f *fixture) scheduledAt(doctorID, patientID uint, at time.Time) uint {
	return f.store.seed(Appointment{
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentDate: at,
		Status:          StatusScheduled,
		WorkflowState:   workflow.StateScheduled,
		Notes:           workflow.Append(workflow.RequestedEntry(fixedNow), workflow.ScheduledEntry(fixedNow)),
	})
}

func TestBookSchedulesFreeSlot(t *testing.T) {
	f := newFixture(t)

	result, err := f.orch.Book(context.Background(), janeActor, BookRequest{
		DoctorID:      doctorHouse,
		PreferredDate: "2025-01-06T10:00:00Z",
		Reason:        "Annual checkup",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Conflict)
	assert.Equal(t, "Appointment successfully scheduled", result.Message)
	assert.Equal(t, workflow.StatusScheduledPendingConfirmation, result.WorkflowStatus)
	assert.Equal(t, "Gregory House", result.DoctorName)
	require.NotNil(t, result.ScheduledTime)
	assert.Equal(t, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), *result.ScheduledTime)
	assert.Equal(t, narrator.SourceTemplate, result.Narrative.Source)
	assert.Contains(t, result.Narrative.Text, "Monday, January 06 at 10:00 AM")

	require.Len(t, result.Notifications, 2)
	assert.Equal(t, "patient", result.Notifications[0].RecipientType)
	assert.Equal(t, "doctor", result.Notifications[1].RecipientType)
	assert.Contains(t, result.Notifications[1].Message, "Please review and confirm.")
	assert.Len(t, f.sender.sent, 2)

	stored := f.store.get(result.AppointmentID)
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.Equal(t, workflow.StateScheduled, stored.WorkflowState)
	require.NotNil(t, stored.Reason)
	assert.Equal(t, "Annual checkup", *stored.Reason)
	entries := workflow.Entries(stored.Notes)
	require.Len(t, entries, 2)
	assert.True(t, strings.HasPrefix(entries[0], workflow.MarkerRequested))
	assert.True(t, strings.HasPrefix(entries[1], workflow.MarkerScheduled))

	count, err := testutil.GatherAndCount(f.reg, "clinic_workflow_bookings_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBookConflictKeepsRequestedRecord(t *testing.T) {
	f := newFixture(t)
	f.scheduledAt(doctorHouse, patientJohn, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	result, err := f.orch.Book(context.Background(), janeActor, BookRequest{
		DoctorID:      doctorHouse,
		PreferredDate: "2025-01-06T10:15:00Z",
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.Conflict)
	assert.Equal(t, "Time slot conflicts with existing appointment", result.Message)
	assert.Equal(t, workflow.StatusBookingRequested, result.WorkflowStatus)
	require.Len(t, result.Alternatives, 3)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), result.Alternatives[0].Time)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 30, 0, 0, time.UTC), result.Alternatives[1].Time)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), result.Alternatives[2].Time)
	assert.Nil(t, result.ScheduledTime)
	assert.Empty(t, result.Notifications)
	assert.Empty(t, f.sender.sent)
	assert.Contains(t, result.Narrative.Text, "Available alternatives")

	stored := f.store.get(result.AppointmentID)
	assert.Equal(t, workflow.StateRequested, stored.WorkflowState)
	assert.NotContains(t, stored.Notes, workflow.MarkerScheduled)

	count, err := testutil.GatherAndCount(f.reg, "clinic_workflow_conflicts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBookOtherDoctorIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	f.scheduledAt(doctorWilson, patientJohn, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	result, err := f.orch.Book(context.Background(), janeActor, BookRequest{
		DoctorID:      doctorHouse,
		PreferredDate: "2025-01-06T10:00:00Z",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestBookValidation(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		req   BookRequest
		want  error
	}{
		{"doctor cannot book", houseActor, BookRequest{DoctorID: doctorWilson, PreferredDate: "2025-01-06T10:00:00Z"}, ErrForbiddenRole},
		{"unparseable date", janeActor, BookRequest{DoctorID: doctorHouse, PreferredDate: "next tuesday"}, ErrInvalidDate},
		{"empty date", janeActor, BookRequest{DoctorID: doctorHouse}, ErrInvalidDate},
		{"past date", janeActor, BookRequest{DoctorID: doctorHouse, PreferredDate: "2025-01-02T10:00:00Z"}, ErrPastDate},
		{"sunday", janeActor, BookRequest{DoctorID: doctorHouse, PreferredDate: "2025-01-05T10:00:00Z"}, scheduling.ErrClosedDay},
		{"before opening", janeActor, BookRequest{DoctorID: doctorHouse, PreferredDate: "2025-01-06T07:30:00Z"}, scheduling.ErrOutsideBusinessHours},
		{"at closing", janeActor, BookRequest{DoctorID: doctorHouse, PreferredDate: "2025-01-06T18:00:00Z"}, scheduling.ErrOutsideBusinessHours},
		{"unknown doctor", janeActor, BookRequest{DoctorID: 99, PreferredDate: "2025-01-06T10:00:00Z"}, ErrDoctorNotFound},
		{"doctor id is a patient", janeActor, BookRequest{DoctorID: patientJohn, PreferredDate: "2025-01-06T10:00:00Z"}, ErrDoctorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.orch.Book(context.Background(), tt.actor, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.store.appts)
		})
	}
}

func TestBookLocalTimeUsesClinicLocation(t *testing.T) {
	f := newFixture(t)
	policy := scheduling.DefaultPolicy()
	policy.Location = time.FixedZone("UTC+3", 3*60*60)
	f.orch = NewOrchestrator(f.store, scheduling.NewChecker(policy), nil, nil, nil, nil).
		WithClock(func() time.Time { return fixedNow })

	result, err := f.orch.Book(context.Background(), janeActor, BookRequest{
		DoctorID:      doctorHouse,
		PreferredDate: "2025-01-06T09:00",
	})
	require.NoError(t, err)
	require.NotNil(t, result.ScheduledTime)
	assert.Equal(t, time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC), *result.ScheduledTime)
}

func TestBookRollsBackWhenSaveFails(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = errors.New("connection reset")

	_, err := f.orch.Book(context.Background(), janeActor, BookRequest{
		DoctorID:      doctorHouse,
		PreferredDate: "2025-01-06T10:00:00Z",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, f.store.appts)
	assert.Empty(t, f.sender.sent)
}

func TestBookDeliveryFailureDoesNotFailWorkflow(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("mailbox full")

	result, err := f.orch.Book(context.Background(), janeActor, BookRequest{
		DoctorID:      doctorHouse,
		PreferredDate: "2025-01-06T10:00:00Z",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Notifications, 2)
	for _, n := range result.Notifications {
		assert.False(t, n.Delivered)
		assert.Equal(t, "mailbox full", n.Error)
	}
}

func TestRescheduleAfterConflict(t *testing.T) {
	f := newFixture(t)
	f.scheduledAt(doctorHouse, patientJohn, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	booked, err := f.orch.Book(context.Background(), janeActor, BookRequest{
		DoctorID:      doctorHouse,
		PreferredDate: "2025-01-06T10:15:00Z",
	})
	require.NoError(t, err)
	require.True(t, booked.Conflict)

	result, err := f.orch.Reschedule(context.Background(), janeActor, booked.AppointmentID, RescheduleRequest{
		PreferredDate: booked.Alternatives[0].Time.Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, workflow.StatusScheduledPendingConfirmation, result.WorkflowStatus)

	stored := f.store.get(booked.AppointmentID)
	assert.Equal(t, workflow.StateScheduled, stored.WorkflowState)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), stored.AppointmentDate)
}

func TestRescheduleOwnSlotIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	id := f.scheduledAt(doctorHouse, patientJane, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	result, err := f.orch.Reschedule(context.Background(), janeActor, id, RescheduleRequest{PreferredDate: "2025-01-06T10:20:00Z"})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRescheduleGuards(t *testing.T) {
	f := newFixture(t)
	id := f.scheduledAt(doctorHouse, patientJane, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	_, err := f.orch.Reschedule(context.Background(), johnActor, id, RescheduleRequest{PreferredDate: "2025-01-06T14:00:00Z"})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.orch.Reschedule(context.Background(), janeActor, 999, RescheduleRequest{PreferredDate: "2025-01-06T14:00:00Z"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: id, Action: "confirm"})
	require.NoError(t, err)
	_, err = f.orch.Reschedule(context.Background(), janeActor, id, RescheduleRequest{PreferredDate: "2025-01-06T14:00:00Z"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestConfirmByOwningDoctor(t *testing.T) {
	f := newFixture(t)
	id := f.scheduledAt(doctorHouse, patientJane, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	result, err := f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{
		AppointmentID: id,
		Action:        "Confirm",
		Notes:         "Bring previous lab results",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "confirm", result.Action)
	assert.Equal(t, "Appointment confirmed by doctor", result.Message)
	assert.Equal(t, workflow.StatusConfirmed, result.ConfirmationStatus)
	assert.Equal(t, "Jane Roe", result.PatientName)
	assert.Equal(t, "Bring previous lab results", result.DoctorNotes)
	assert.True(t, result.PatientNotified)
	require.Len(t, result.Notifications, 2)

	stored := f.store.get(id)
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.Equal(t, workflow.StateConfirmed, stored.WorkflowState)
	assert.Contains(t, stored.Notes, workflow.MarkerConfirmed)
	assert.Contains(t, stored.Notes, "Doctor notes: Bring previous lab results")
	assert.Equal(t, workflow.StatusConfirmed, workflow.Derive(stored.Notes))
}

func TestConfirmByOtherDoctorLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	id := f.scheduledAt(doctorHouse, patientJane, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	before := f.store.get(id)

	_, err := f.orch.Confirm(context.Background(), wilsonActor, ConfirmRequest{AppointmentID: id, Action: "confirm"})
	assert.ErrorIs(t, err, ErrNotAppointmentDoctor)
	assert.Equal(t, before, f.store.get(id))
	assert.Empty(t, f.sender.sent)
}

func TestRejectCancelsAndSecondDecisionIsFlagged(t *testing.T) {
	f := newFixture(t)
	id := f.scheduledAt(doctorHouse, patientJane, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	result, err := f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{
		AppointmentID: id,
		Action:        "reject",
		Notes:         "On leave that day",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, result.ConfirmationStatus)
	assert.Equal(t, "Appointment rejected by doctor", result.Message)

	stored := f.store.get(id)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.Equal(t, workflow.StateRejected, stored.WorkflowState)
	assert.Contains(t, stored.Notes, "Rejection reason: On leave that day")

	_, err = f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: id, Action: "reject"})
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Equal(t, stored, f.store.get(id))

	_, err = f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: id, Action: "confirm"})
	assert.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestConfirmGuards(t *testing.T) {
	f := newFixture(t)
	id := f.scheduledAt(doctorHouse, patientJane, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))

	_, err := f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: id, Action: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = f.orch.Confirm(context.Background(), janeActor, ConfirmRequest{AppointmentID: id, Action: "confirm"})
	assert.ErrorIs(t, err, ErrForbiddenRole)

	_, err = f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: 999, Action: "confirm"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	requested := f.store.seed(Appointment{
		PatientID:       patientJane,
		DoctorID:        doctorHouse,
		AppointmentDate: time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC),
		Status:          StatusScheduled,
		WorkflowState:   workflow.StateRequested,
		Notes:           workflow.RequestedEntry(fixedNow),
	})
	_, err = f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: requested, Action: "confirm"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: requested, Action: "reject"})
	assert.NoError(t, err)
}

func TestConfirmLegacyTrailWithoutState(t *testing.T) {
	f := newFixture(t)
	id := f.store.seed(Appointment{
		PatientID:       patientJane,
		DoctorID:        doctorHouse,
		AppointmentDate: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		Status:          StatusScheduled,
		Notes:           "Booking requested at 2025-01-02 09:00 | Scheduled at 2025-01-02 09:00",
	})

	_, err := f.orch.Confirm(context.Background(), houseActor, ConfirmRequest{AppointmentID: id, Action: "confirm"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateConfirmed, f.store.get(id).WorkflowState)
}

func TestBatchConfirm(t *testing.T) {
	f := newFixture(t)
	mine := f.scheduledAt(doctorHouse, patientJane, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	alsoMine := f.scheduledAt(doctorHouse, patientJohn, time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC))
	theirs := f.scheduledAt(doctorWilson, patientJohn, time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC))

	result, err := f.orch.BatchConfirm(context.Background(), houseActor, []ConfirmRequest{
		{AppointmentID: mine, Action: "confirm"},
		{AppointmentID: theirs, Action: "confirm"},
		{AppointmentID: alsoMine, Action: "REJECT", Notes: "Fully booked"},
		{AppointmentID: mine, Action: "confirm"},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.ProcessedCount)
	require.Len(t, result.Results, 2)
	assert.Equal(t, BatchItem{AppointmentID: mine, Action: "confirm", Status: "processed"}, result.Results[0])
	assert.Equal(t, BatchItem{AppointmentID: alsoMine, Action: "reject", Status: "processed"}, result.Results[1])
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "not found or not authorized")
	assert.Contains(t, result.Errors[1], "already been decided")

	assert.Equal(t, workflow.StateScheduled, f.store.get(theirs).WorkflowState)

	_, err = f.orch.BatchConfirm(context.Background(), janeActor, nil)
	assert.ErrorIs(t, err, ErrForbiddenRole)

	empty, err := f.orch.BatchConfirm(context.Background(), houseActor, nil)
	require.NoError(t, err)
	assert.True(t, empty.Success)
	assert.Zero(t, empty.ProcessedCount)
}

func TestParseProposed(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)

	got, err := ParseProposed("2025-01-06T10:00:00+02:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), got)

	got, err = ParseProposed(" 2025-01-06 10:00 ", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC), got)

	_, err = ParseProposed("06/01/2025", loc)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
