package directory

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
)

type mockDoctorRepo struct {
	store map[uuid.UUID]*Doctor
	// hospital id -> doctor ids with active availability
	practising map[uuid.UUID][]uuid.UUID
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{store: make(map[uuid.UUID]*Doctor), practising: make(map[uuid.UUID][]uuid.UUID)}
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("doctor", id.String())
	}
	return d, nil
}

func (m *mockDoctorRepo) ListByHospital(_ context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	ids := m.practising[hospitalID]
	items := []*Doctor{}
	for i := offset; i < len(ids) && len(items) < limit; i++ {
		items = append(items, m.store[ids[i]])
	}
	return items, len(ids), nil
}

type mockHospitalRepo struct {
	store map[uuid.UUID]*Hospital
}

func newMockHospitalRepo() *mockHospitalRepo {
	return &mockHospitalRepo{store: make(map[uuid.UUID]*Hospital)}
}

func (m *mockHospitalRepo) GetByID(_ context.Context, id uuid.UUID) (*Hospital, error) {
	h, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("hospital", id.String())
	}
	return h, nil
}
