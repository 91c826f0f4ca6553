package directory

import (
	"context"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Doctor, int, error)
}

type HospitalRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
}
