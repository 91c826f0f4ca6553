package availability

import (
	"context"

	"github.com/google/uuid"
)

type RuleRepository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDoctor returns every rule of the doctor, optionally limited to
	// one hospital, ordered by day_of_week then evaluation order.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, hospitalID *uuid.UUID) ([]*Rule, error)
	// ListActive returns the active rules for one weekday in evaluation
	// order.
	ListActive(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*Rule, error)
	// LockActive is ListActive holding a transaction-scoped lock on the
	// doctor, hospital and weekday, so concurrent bookings and rule writes
	// for that weekday serialise. It must run inside a transaction.
	LockActive(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*Rule, error)
}

// BookingCounter counts pending and confirmed appointments per start time
// on one date.
type BookingCounter interface {
	BookedCounts(ctx context.Context, doctorID, hospitalID uuid.UUID, date string) (map[string]int, error)
}
