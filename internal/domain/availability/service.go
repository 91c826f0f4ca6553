package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/directory"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
)

const (
	DefaultDays = 1
	MaxDays     = 14
)

// Directory confirms that the doctor and hospital of a request exist.
type Directory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	GetHospital(ctx context.Context, id uuid.UUID) (*directory.Hospital, error)
}

// Recorder receives instrumentation events. A nil Recorder is allowed.
type Recorder interface {
	SlotsDerived(n int)
	AvailabilityChanged(op string)
}

type nopRecorder struct{}

func (nopRecorder) SlotsDerived(int)           {}
func (nopRecorder) AvailabilityChanged(string) {}

type Service struct {
	rules         RuleRepository
	counts        BookingCounter
	dir           Directory
	tx            db.Transactor
	overlapPolicy string
	rec           Recorder
}

// NewService builds the availability service. overlapPolicy is
// config.OverlapReject or config.OverlapAllow.
func NewService(rules RuleRepository, counts BookingCounter, dir Directory, tx db.Transactor,
	overlapPolicy string, rec Recorder) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	if overlapPolicy == "" {
		overlapPolicy = config.OverlapReject
	}
	return &Service{rules: rules, counts: counts, dir: dir, tx: tx, overlapPolicy: overlapPolicy, rec: rec}
}

// Create authorises p against the rule's doctor, validates the rule and
// stores it.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in RuleInput) (*Rule, error) {
	doctorID, err := parseID("doctor_id", in.DoctorID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, doctorID.String()); err != nil {
		return nil, err
	}

	rule, err := NewRule(in)
	if err != nil {
		return nil, err
	}
	if err := s.ensureDirectory(ctx, rule.DoctorID, rule.HospitalID); err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkOverlap(ctx, rule); err != nil {
			return err
		}
		return s.rules.Create(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	s.rec.AvailabilityChanged("create")
	return rule, nil
}

// Get returns one rule. Doctors may only read their own.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Rule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, rule.DoctorID.String()); err != nil {
		return nil, err
	}
	return rule, nil
}

// List returns the doctor's rules, optionally for one hospital.
func (s *Service) List(ctx context.Context, p *auth.Principal, doctorID uuid.UUID, hospitalID *uuid.UUID) ([]*Rule, error) {
	if err := auth.Authorize(p, doctorID.String()); err != nil {
		return nil, err
	}
	if _, err := s.dir.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.rules.ListByDoctor(ctx, doctorID, hospitalID)
}

// Update applies a partial update. Only the owning doctor or an admin may
// change a rule.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, patch RulePatch) (*Rule, error) {
	var rule *Rule
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		stored, err := s.rules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := auth.Authorize(p, stored.DoctorID.String()); err != nil {
			return err
		}
		if rule, err = ApplyPatch(*stored, patch); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, rule); err != nil {
			return err
		}
		return s.rules.Update(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	s.rec.AvailabilityChanged("update")
	return rule, nil
}

// Delete removes a rule. Existing appointments are kept.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	stored, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(p, stored.DoctorID.String()); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.rec.AvailabilityChanged("delete")
	return nil
}

// ListSlots derives the slots of days consecutive dates starting at date.
// A weekday without active rules yields an empty list.
func (s *Service) ListSlots(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time, days int) ([]DaySlots, error) {
	if days < 1 || days > MaxDays {
		return nil, apperr.Invalid("days", "must be between 1 and %d", MaxDays)
	}
	if err := s.ensureDirectory(ctx, doctorID, hospitalID); err != nil {
		return nil, err
	}

	out := make([]DaySlots, 0, days)
	total := 0
	for i := 0; i < days; i++ {
		day := date.AddDate(0, 0, i)
		ds, err := s.slotsFor(ctx, doctorID, hospitalID, day)
		if err != nil {
			return nil, err
		}
		total += len(ds.Slots)
		out = append(out, ds)
	}
	s.rec.SlotsDerived(total)
	return out, nil
}

func (s *Service) slotsFor(ctx context.Context, doctorID, hospitalID uuid.UUID, day time.Time) (DaySlots, error) {
	ds := DaySlots{Date: day.Format(time.DateOnly), DayOfWeek: Weekday(day), Slots: []Slot{}}

	rules, err := s.rules.ListActive(ctx, doctorID, hospitalID, ds.DayOfWeek)
	if err != nil || len(rules) == 0 {
		return ds, err
	}
	booked, err := s.counts.BookedCounts(ctx, doctorID, hospitalID, ds.Date)
	if err != nil {
		return ds, err
	}
	ds.Slots = Derive(rules, booked)
	return ds, nil
}

func (s *Service) ensureDirectory(ctx context.Context, doctorID, hospitalID uuid.UUID) error {
	if _, err := s.dir.GetDoctor(ctx, doctorID); err != nil {
		return err
	}
	_, err := s.dir.GetHospital(ctx, hospitalID)
	return err
}

// checkOverlap rejects an active rule whose window intersects another
// active rule of the same doctor, hospital and weekday. It runs inside a
// transaction and holds the weekday lock until the write commits.
func (s *Service) checkOverlap(ctx context.Context, rule *Rule) error {
	if s.overlapPolicy != config.OverlapReject || !rule.IsActive {
		return nil
	}
	existing, err := s.rules.LockActive(ctx, rule.DoctorID, rule.HospitalID, rule.DayOfWeek)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID != rule.ID && rule.Overlaps(other) {
			return &apperr.OverlapError{ConflictingID: other.ID.String()}
		}
	}
	return nil
}
