package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus moves a to a.Status only if the stored status is still
	// from.
	UpdateStatus(ctx context.Context, a *Appointment, from string) error
	// CountActive counts pending and confirmed appointments of one slot.
	CountActive(ctx context.Context, doctorID, hospitalID uuid.UUID, date, slot string) (int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}
