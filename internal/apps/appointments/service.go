package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/scheduling"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/workflow"
)

// Service implements the direct CRUD operations and read models. Workflow
// operations that check availability live on Orchestrator.
type Service struct {
	store  Store
	policy scheduling.Policy
	now    func() time.Time
}

func NewService(store Store, policy scheduling.Policy) *Service {
	return &Service{store: store, policy: policy, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateInput struct {
	DoctorID        uint
	AppointmentDate time.Time
	Reason          *string
}

type UpdateInput struct {
	Status *string
	Notes  *string
}

// loadParties checks that patientID is a patient and doctorID is a doctor.
func loadParties(ctx context.Context, store Store, patientID, doctorID uint) (*models.User, *models.User, error) {
	patient, err := store.FindUser(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrPatientNotFound
		}
		return nil, nil, err
	}
	if !patient.IsPatient() {
		return nil, nil, ErrPatientNotFound
	}

	doctor, err := store.FindUser(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrDoctorNotFound
		}
		return nil, nil, err
	}
	if !doctor.IsDoctor() || !doctor.IsActive {
		return nil, nil, ErrDoctorNotFound
	}
	return patient, doctor, nil
}

// Create books without an availability check.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Appointment, error) {
	if !actor.IsPatient() {
		return nil, ErrForbiddenRole
	}
	if in.AppointmentDate.IsZero() {
		return nil, ErrInvalidDate
	}

	patient, doctor, err := loadParties(ctx, s.store, actor.ID, in.DoctorID)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		AppointmentDate: in.AppointmentDate.UTC(),
		Reason:          in.Reason,
		Status:          StatusScheduled,
		WorkflowState:   workflow.StateRequested,
		Notes:           workflow.RequestedEntry(s.now().UTC()),
	}
	if err := s.store.Create(ctx, appt); err != nil {
		return nil, err
	}
	appt.Patient, appt.Doctor = patient, doctor
	return appt, nil
}

func (s *Service) List(ctx context.Context, actor Actor) ([]Appointment, error) {
	switch {
	case actor.IsDoctor():
		return s.store.ListForDoctor(ctx, actor.ID)
	case actor.IsPatient():
		return s.store.ListForPatient(ctx, actor.ID)
	}
	return nil, ErrForbiddenRole
}

func (s *Service) findOwned(ctx context.Context, store Store, actor Actor, id uint) (*Appointment, error) {
	appt, err := store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(appt) {
		return nil, ErrNotOwner
	}
	return appt, nil
}

// Update appends notes and moves status through the state machine.
func (s *Service) Update(ctx context.Context, actor Actor, id uint, in UpdateInput) (*Appointment, error) {
	var out *Appointment
	err := s.store.Transaction(ctx, func(tx Store) error {
		appt, err := s.findOwned(ctx, tx, actor, id)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if in.Status != nil {
			if err := applyStatus(appt, actor, strings.ToLower(strings.TrimSpace(*in.Status)), now); err != nil {
				return err
			}
		}
		if in.Notes != nil {
			appt.Notes = workflow.Append(appt.Notes, workflow.NoteEntry(actor.Role, *in.Notes))
		}

		if err := tx.Save(ctx, appt); err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete marks a confirmed appointment as completed.
func (s *Service) Complete(ctx context.Context, actor Actor, id uint) (*Appointment, error) {
	status := StatusCompleted
	return s.Update(ctx, actor, id, UpdateInput{Status: &status})
}

func applyStatus(appt *Appointment, actor Actor, status string, now time.Time) error {
	if !validStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == appt.Status {
		return nil
	}

	state := appt.State()
	switch status {
	case StatusCancelled:
		if err := workflow.Transition(state, workflow.StateCancelled); err != nil {
			return err
		}
		appt.Status = StatusCancelled
		appt.WorkflowState = workflow.StateCancelled
		appt.Notes = workflow.Append(appt.Notes, workflow.CancelledEntry(actor.Role, now))
	case StatusCompleted:
		if !actor.IsDoctor() {
			return ErrForbiddenRole
		}
		if err := workflow.Transition(state, workflow.StateCompleted); err != nil {
			return err
		}
		appt.Status = StatusCompleted
		appt.WorkflowState = workflow.StateCompleted
		appt.Notes = workflow.Append(appt.Notes, workflow.CompletedEntry(now))
	default:
		// Cancelled and completed appointments cannot be reopened.
		return fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidTransition, appt.Status, status)
	}
	return nil
}

type WorkflowStatusView struct {
	AppointmentID     uint            `json:"appointment_id"`
	WorkflowStatus    workflow.Status `json:"workflow_status"`
	WorkflowState     workflow.State  `json:"workflow_state"`
	AppointmentStatus string          `json:"appointment_status"`
	PatientName       string          `json:"patient_name"`
	DoctorName        string          `json:"doctor_name"`
	AppointmentDate   time.Time       `json:"appointment_date"`
	Reason            *string         `json:"reason"`
	WorkflowHistory   []string        `json:"workflow_history"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (s *Service) WorkflowStatus(ctx context.Context, actor Actor, id uint) (*WorkflowStatusView, error) {
	appt, err := s.findOwned(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	return &WorkflowStatusView{
		AppointmentID:     appt.ID,
		WorkflowStatus:    appt.WorkflowStatus(),
		WorkflowState:     appt.State(),
		AppointmentStatus: appt.Status,
		PatientName:       appt.patientName(),
		DoctorName:        appt.doctorName(),
		AppointmentDate:   appt.AppointmentDate,
		Reason:            appt.Reason,
		WorkflowHistory:   workflow.Entries(appt.Notes),
		CreatedAt:         appt.CreatedAt,
	}, nil
}

type PendingConfirmation struct {
	AppointmentID   uint      `json:"appointment_id"`
	PatientName     string    `json:"patient_name"`
	PatientEmail    string    `json:"patient_email"`
	AppointmentDate time.Time `json:"appointment_date"`
	Reason          *string   `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Service) PendingConfirmations(ctx context.Context, actor Actor) ([]PendingConfirmation, error) {
	if !actor.IsDoctor() {
		return nil, ErrForbiddenRole
	}
	appts, err := s.store.PendingForDoctor(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	out := make([]PendingConfirmation, 0, len(appts))
	for i := range appts {
		a := &appts[i]
		email := "unknown"
		if a.Patient != nil {
			email = a.Patient.Email
		}
		out = append(out, PendingConfirmation{
			AppointmentID:   a.ID,
			PatientName:     a.patientName(),
			PatientEmail:    email,
			AppointmentDate: a.AppointmentDate,
			Reason:          a.Reason,
			CreatedAt:       a.CreatedAt,
		})
	}
	return out, nil
}

type ScheduleItem struct {
	AppointmentID  uint            `json:"appointment_id"`
	Time           string          `json:"time"`
	PatientID      uint            `json:"patient_id"`
	PatientName    string          `json:"patient_name"`
	Reason         *string         `json:"reason"`
	Status         string          `json:"status"`
	WorkflowStatus workflow.Status `json:"workflow_status"`
}

type DashboardSummary struct {
	DoctorName                string                `json:"doctor_name"`
	TodayAppointmentsCount    int                   `json:"today_appointments_count"`
	PendingConfirmationsCount int                   `json:"pending_confirmations_count"`
	TotalAppointments         int64                 `json:"total_appointments"`
	CompletedAppointments     int64                 `json:"completed_appointments"`
	CancelledAppointments     int64                 `json:"cancelled_appointments"`
	CompletionRate            float64               `json:"completion_rate"`
	TodaySchedule             []ScheduleItem        `json:"today_schedule"`
	PendingConfirmations      []PendingConfirmation `json:"pending_confirmations"`
}

func (s *Service) DashboardSummary(ctx context.Context, actor Actor) (*DashboardSummary, error) {
	if !actor.IsDoctor() {
		return nil, ErrForbiddenRole
	}
	doctor, err := s.store.FindUser(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	loc := s.policy.Location
	if loc == nil {
		loc = time.UTC
	}
	local := s.now().In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	today, err := s.store.ListForDoctorBetween(ctx, actor.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	pending, err := s.PendingConfirmations(ctx, actor)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.CountByStatus(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}

	summary := &DashboardSummary{
		DoctorName:                doctor.FullName,
		TodayAppointmentsCount:    len(today),
		PendingConfirmationsCount: len(pending),
		TotalAppointments:         total,
		CompletedAppointments:     counts[StatusCompleted],
		CancelledAppointments:     counts[StatusCancelled],
		TodaySchedule:             make([]ScheduleItem, 0, len(today)),
		PendingConfirmations:      pending,
	}
	if total > 0 {
		summary.CompletionRate = float64(summary.CompletedAppointments) / float64(total) * 100
	}
	for i := range today {
		a := &today[i]
		summary.TodaySchedule = append(summary.TodaySchedule, ScheduleItem{
			AppointmentID:  a.ID,
			Time:           a.AppointmentDate.In(loc).Format("15:04"),
			PatientID:      a.PatientID,
			PatientName:    a.patientName(),
			Reason:         a.Reason,
			Status:         a.Status,
			WorkflowStatus: a.WorkflowStatus(),
		})
	}
	return summary, nil
}
