package appointments

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/workflow"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

func validStatus(s string) bool {
	return s == StatusScheduled || s == StatusCompleted || s == StatusCancelled
}

// Appointment is a booking between a patient and a doctor. Notes holds the
// append-only annotation trail; WorkflowState is the source of truth for
// workflow position.
type Appointment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PatientID       uint           `gorm:"not null;index" json:"patient_id"`
	DoctorID        uint           `gorm:"not null;index:idx_appointments_doctor_date,priority:1" json:"doctor_id"`
	AppointmentDate time.Time      `gorm:"not null;index:idx_appointments_doctor_date,priority:2" json:"appointment_date"`
	Reason          *string        `gorm:"type:text" json:"reason"`
	Status          string         `gorm:"size:20;not null;default:scheduled;index" json:"status"`
	WorkflowState   workflow.State `gorm:"size:20;index" json:"workflow_state"`
	Notes           string         `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Patient *models.User `gorm:"foreignKey:PatientID;constraint:OnDelete:RESTRICT" json:"-"`
	Doctor  *models.User `gorm:"foreignKey:DoctorID;constraint:OnDelete:RESTRICT" json:"-"`
}

// State returns the persisted state, inferring it from the trail for rows
// written before the column existed.
func (a *Appointment) State() workflow.State {
	if a.WorkflowState != "" {
		return a.WorkflowState
	}
	return workflow.Infer(a.Notes)
}

// WorkflowStatus is the client-facing classification.
func (a *Appointment) WorkflowStatus() workflow.Status {
	return workflow.StatusOf(a.WorkflowState, a.Notes)
}

func (a *Appointment) patientName() string {
	if a.Patient == nil {
		return "Unknown"
	}
	return a.Patient.FullName
}

func (a *Appointment) doctorName() string {
	if a.Doctor == nil {
		return "Unknown"
	}
	return a.Doctor.FullName
}

// Actor is the authenticated caller.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) IsDoctor() bool  { return a.Role == models.RoleDoctor }
func (a Actor) IsPatient() bool { return a.Role == models.RolePatient }

// owns reports whether the actor is the appointment's doctor or patient.
func (a Actor) owns(appt *Appointment) bool {
	switch a.Role {
	case models.RoleDoctor:
		return appt.DoctorID == a.ID
	case models.RolePatient:
		return appt.PatientID == a.ID
	}
	return false
}
