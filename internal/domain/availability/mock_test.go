package availability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/directory"
	"github.com/hms/hms/internal/platform/apperr"
)

type mockRuleRepo struct {
	store map[uuid.UUID]*Rule
	clock time.Time
	// listActiveCalls counts ListActive invocations.
	listActiveCalls int
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{store: make(map[uuid.UUID]*Rule), clock: base}
}

func (m *mockRuleRepo) Create(_ context.Context, r *Rule) error {
	r.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	r.CreatedAt, r.UpdatedAt = m.clock, m.clock
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*Rule, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("availability", id.String())
	}
	cp := *r
	return &cp, nil
}

func (m *mockRuleRepo) Update(_ context.Context, r *Rule) error {
	if _, ok := m.store[r.ID]; !ok {
		return apperr.NotFound("availability", r.ID.String())
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockRuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("availability", id.String())
	}
	delete(m.store, id)
	return nil
}

func (m *mockRuleRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, hospitalID *uuid.UUID) ([]*Rule, error) {
	out := []*Rule{}
	for _, r := range m.store {
		if r.DoctorID == doctorID && (hospitalID == nil || r.HospitalID == *hospitalID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	SortRules(out)
	return out, nil
}

func (m *mockRuleRepo) ListActive(_ context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*Rule, error) {
	m.listActiveCalls++
	out := []*Rule{}
	for _, r := range m.store {
		if r.DoctorID == doctorID && r.HospitalID == hospitalID && r.DayOfWeek == weekday && r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	SortRules(out)
	return out, nil
}

func (m *mockRuleRepo) LockActive(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*Rule, error) {
	return m.ListActive(ctx, doctorID, hospitalID, weekday)
}

type mockCounter struct {
	// date -> "HH:MM" -> count
	counts map[string]map[string]int
	calls  int
}

func newMockCounter() *mockCounter {
	return &mockCounter{counts: make(map[string]map[string]int)}
}

func (m *mockCounter) BookedCounts(_ context.Context, _, _ uuid.UUID, date string) (map[string]int, error) {
	m.calls++
	return m.counts[date], nil
}

type mockDirectory struct {
	doctors   map[uuid.UUID]*directory.Doctor
	hospitals map[uuid.UUID]*directory.Hospital
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		doctors:   make(map[uuid.UUID]*directory.Doctor),
		hospitals: make(map[uuid.UUID]*directory.Hospital),
	}
}

func (m *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor", id.String())
	}
	return d, nil
}

func (m *mockDirectory) GetHospital(_ context.Context, id uuid.UUID) (*directory.Hospital, error) {
	h, ok := m.hospitals[id]
	if !ok {
		return nil, apperr.NotFound("hospital", id.String())
	}
	return h, nil
}

// serialTx runs transactions one at a time, standing in for the weekday lock.
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

type recordingRecorder struct {
	mu      sync.Mutex
	derived []int
	changes []string
}

func (r *recordingRecorder) SlotsDerived(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.derived = append(r.derived, n)
}

func (r *recordingRecorder) AvailabilityChanged(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, op)
}
