package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/availability"
	"github.com/hms/hms/internal/domain/directory"
	"github.com/hms/hms/internal/platform/apperr"
)

type mockRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.store {
		if o.Active() && o.DoctorID == a.DoctorID && o.HospitalID == a.HospitalID &&
			o.AppointmentDate == a.AppointmentDate && o.AppointmentTime == a.AppointmentTime &&
			o.PatientID == a.PatientID {
			return &apperr.DuplicateBookingError{}
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("appointment", id.String())
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, a *Appointment, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.store[a.ID]
	if !ok {
		return apperr.NotFound("appointment", a.ID.String())
	}
	if stored.Status != from {
		return apperr.Invalid("status", "appointment is no longer %s", from)
	}
	stored.Status = a.Status
	return nil
}

func (m *mockRepo) CountActive(_ context.Context, doctorID, hospitalID uuid.UUID, date, slot string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.store {
		if a.Active() && a.DoctorID == doctorID && a.HospitalID == hospitalID &&
			a.AppointmentDate == date && a.AppointmentTime == slot {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return m.list(func(a *Appointment) bool { return a.PatientID == patientID }, limit, offset)
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return m.list(func(a *Appointment) bool { return a.DoctorID == doctorID }, limit, offset)
}

func (m *mockRepo) list(match func(*Appointment) bool, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Appointment
	for _, a := range m.store {
		if match(a) {
			cp := *a
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	items := []*Appointment{}
	for i := offset; i < len(all) && len(items) < limit; i++ {
		items = append(items, all[i])
	}
	return items, len(all), nil
}

type mockRules struct {
	rules []*availability.Rule
	locks int
}

func (m *mockRules) LockActive(_ context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*availability.Rule, error) {
	m.locks++
	out := []*availability.Rule{}
	for _, r := range m.rules {
		if r.DoctorID == doctorID && r.HospitalID == hospitalID && r.DayOfWeek == weekday && r.IsActive {
			out = append(out, r)
		}
	}
	availability.SortRules(out)
	return out, nil
}

type mockDirectory struct {
	doctors   map[uuid.UUID]bool
	hospitals map[uuid.UUID]bool
}

func (m *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	if !m.doctors[id] {
		return nil, apperr.NotFound("doctor", id.String())
	}
	return &directory.Doctor{ID: id}, nil
}

func (m *mockDirectory) GetHospital(_ context.Context, id uuid.UUID) (*directory.Hospital, error) {
	if !m.hospitals[id] {
		return nil, apperr.NotFound("hospital", id.String())
	}
	return &directory.Hospital{ID: id}, nil
}

// serialTx runs transactions one at a time, standing in for the row lock.
type serialTx struct {
	mu    sync.Mutex
	calls int
}

func (t *serialTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return fn(ctx)
}

type outcomes struct {
	mu   sync.Mutex
	errs []error
}

func (o *outcomes) BookingOutcome(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}
