package appointments

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/workflow"
)

// memStore is an in-memory Store. Transaction snapshots the appointment
// table and restores it when fn fails.
type memStore struct {
	users   map[uint]*models.User
	appts   map[uint]Appointment
	nextID  uint
	saveErr error
	clock   func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[uint]*models.User{},
		appts:  map[uint]Appointment{},
		nextID: 1,
		clock:  func() time.Time { return time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC) },
	}
}

func (s *memStore) addUser(id uint, role, name string) *models.User {
	u := &models.User{
		ID:       id,
		Email:    strings.ToLower(strings.Fields(name)[0]) + "@example.com",
		FullName: name,
		Role:     role,
		IsActive: true,
	}
	s.users[id] = u
	return u
}

// seed stores appt as-is and returns its id.
func (s *memStore) seed(appt Appointment) uint {
	appt.ID = s.nextID
	s.nextID++
	appt.Patient, appt.Doctor = nil, nil
	s.appts[appt.ID] = appt
	return appt.ID
}

func (s *memStore) get(id uint) Appointment {
	return s.appts[id]
}

func (s *memStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	snapshot := make(map[uint]Appointment, len(s.appts))
	for id, a := range s.appts {
		snapshot[id] = a
	}
	nextID := s.nextID
	if err := fn(s); err != nil {
		s.appts = snapshot
		s.nextID = nextID
		return err
	}
	return nil
}

func (s *memStore) FindUser(_ context.Context, id uint) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) Create(_ context.Context, appt *Appointment) error {
	appt.ID = s.nextID
	s.nextID++
	appt.CreatedAt = s.clock()
	appt.UpdatedAt = appt.CreatedAt
	stored := *appt
	stored.Patient, stored.Doctor = nil, nil
	s.appts[appt.ID] = stored
	return nil
}

func (s *memStore) Save(_ context.Context, appt *Appointment) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	appt.UpdatedAt = s.clock()
	stored := *appt
	stored.Patient, stored.Doctor = nil, nil
	s.appts[appt.ID] = stored
	return nil
}

func (s *memStore) hydrate(a Appointment) Appointment {
	if u, ok := s.users[a.PatientID]; ok {
		cp := *u
		a.Patient = &cp
	}
	if u, ok := s.users[a.DoctorID]; ok {
		cp := *u
		a.Doctor = &cp
	}
	return a
}

func (s *memStore) Find(_ context.Context, id uint) (*Appointment, error) {
	a, ok := s.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a = s.hydrate(a)
	return &a, nil
}

func (s *memStore) filter(keep func(Appointment) bool) []Appointment {
	out := []Appointment{}
	for _, a := range s.appts {
		if keep(a) {
			out = append(out, s.hydrate(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})
	return out
}

func (s *memStore) ListForDoctor(_ context.Context, doctorID uint) ([]Appointment, error) {
	return s.filter(func(a Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (s *memStore) ListForPatient(_ context.Context, patientID uint) ([]Appointment, error) {
	return s.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (s *memStore) ListForDoctorBetween(_ context.Context, doctorID uint, from, to time.Time) ([]Appointment, error) {
	return s.filter(func(a Appointment) bool {
		return a.DoctorID == doctorID && !a.AppointmentDate.Before(from) && a.AppointmentDate.Before(to)
	}), nil
}

func (s *memStore) PendingForDoctor(_ context.Context, doctorID uint) ([]Appointment, error) {
	return s.filter(func(a Appointment) bool {
		if a.DoctorID != doctorID || a.Status != StatusScheduled {
			return false
		}
		if a.WorkflowState == "" {
			return workflow.AwaitingDoctor(a.Notes)
		}
		return a.WorkflowState == workflow.StateScheduled
	}), nil
}

func (s *memStore) CountByStatus(_ context.Context, doctorID uint) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, a := range s.appts {
		if a.DoctorID == doctorID {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (s *memStore) Booked(_ context.Context, doctorID uint, from, to time.Time, excludeID uint) ([]time.Time, error) {
	var out []time.Time
	for _, a := range s.appts {
		if a.DoctorID != doctorID || a.Status != StatusScheduled || (excludeID != 0 && a.ID == excludeID) {
			continue
		}
		if a.AppointmentDate.Before(from) || a.AppointmentDate.After(to) {
			continue
		}
		out = append(out, a.AppointmentDate)
	}
	return out, nil
}

var _ Store = (*memStore)(nil)
