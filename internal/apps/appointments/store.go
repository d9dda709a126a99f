package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/scheduling"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence boundary for appointments. A Store obtained inside
// Transaction runs every call on that transaction.
type Store interface {
	scheduling.Calendar

	Transaction(ctx context.Context, fn func(tx Store) error) error

	FindUser(ctx context.Context, id uint) (*models.User, error)

	Create(ctx context.Context, appt *Appointment) error
	Save(ctx context.Context, appt *Appointment) error
	Find(ctx context.Context, id uint) (*Appointment, error)

	ListForDoctor(ctx context.Context, doctorID uint) ([]Appointment, error)
	ListForPatient(ctx context.Context, patientID uint) ([]Appointment, error)
	ListForDoctorBetween(ctx context.Context, doctorID uint, from, to time.Time) ([]Appointment, error)
	PendingForDoctor(ctx context.Context, doctorID uint) ([]Appointment, error)
	CountByStatus(ctx context.Context, doctorID uint) (map[string]int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) Create(ctx context.Context, appt *Appointment) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(appt).Error; err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (s *GormStore) Save(ctx context.Context, appt *Appointment) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(appt).Error; err != nil {
		return fmt.Errorf("save appointment: %w", err)
	}
	return nil
}

func (s *GormStore) Find(ctx context.Context, id uint) (*Appointment, error) {
	var appt Appointment
	err := s.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		First(&appt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appt, nil
}

func (s *GormStore) list(ctx context.Context, query string, args ...interface{}) ([]Appointment, error) {
	var appts []Appointment
	err := s.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Where(query, args...).
		Order("appointment_date ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *GormStore) ListForDoctor(ctx context.Context, doctorID uint) ([]Appointment, error) {
	return s.list(ctx, "doctor_id = ?", doctorID)
}

func (s *GormStore) ListForPatient(ctx context.Context, patientID uint) ([]Appointment, error) {
	return s.list(ctx, "patient_id = ?", patientID)
}

func (s *GormStore) ListForDoctorBetween(ctx context.Context, doctorID uint, from, to time.Time) ([]Appointment, error) {
	return s.list(ctx, "doctor_id = ? AND appointment_date >= ? AND appointment_date < ?", doctorID, from.UTC(), to.UTC())
}

// PendingForDoctor matches rows in the scheduled state. Rows without a state
// fall back to trail markers.
func (s *GormStore) PendingForDoctor(ctx context.Context, doctorID uint) ([]Appointment, error) {
	return s.list(ctx,
		"doctor_id = ? AND status = ? AND (workflow_state = ? OR ((workflow_state = '' OR workflow_state IS NULL) AND notes LIKE ? AND notes NOT LIKE ? AND notes NOT LIKE ?))",
		doctorID, StatusScheduled, workflow.StateScheduled,
		"%"+workflow.MarkerScheduled+"%",
		"%"+workflow.MarkerConfirmed+"%",
		"%"+workflow.MarkerRejected+"%",
	)
}

func (s *GormStore) CountByStatus(ctx context.Context, doctorID uint) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Select("status, COUNT(*) AS count").
		Where("doctor_id = ?", doctorID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Booked implements scheduling.Calendar over scheduled-status rows.
func (s *GormStore) Booked(ctx context.Context, doctorID uint, from, to time.Time, excludeID uint) ([]time.Time, error) {
	q := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("doctor_id = ? AND status = ? AND appointment_date BETWEEN ? AND ?", doctorID, StatusScheduled, from.UTC(), to.UTC())
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var times []time.Time
	if err := q.Pluck("appointment_date", &times).Error; err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}
	return times, nil
}

var _ Store = (*GormStore)(nil)
