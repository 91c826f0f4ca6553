package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/availability"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
)

const MaxNotesLength = 1000

// RuleLocker loads the active rules of one weekday under row locks.
type RuleLocker interface {
	LockActive(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*availability.Rule, error)
}

// Recorder receives the outcome of every booking attempt.
type Recorder interface {
	BookingOutcome(err error)
}

type nopRecorder struct{}

func (nopRecorder) BookingOutcome(error) {}

type Service struct {
	repo          Repository
	rules         RuleLocker
	dir           availability.Directory
	tx            db.Transactor
	defaultStatus string
	loc           *time.Location
	rec           Recorder
	now           func() time.Time
}

// NewService builds the booking service. defaultStatus is the status given
// to new appointments and loc the zone in which "today" is computed.
func NewService(repo Repository, rules RuleLocker, dir availability.Directory, tx db.Transactor,
	defaultStatus string, loc *time.Location, rec Recorder) *Service {
	if defaultStatus == "" {
		defaultStatus = StatusPending
	}
	if loc == nil {
		loc = time.UTC
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{
		repo:          repo,
		rules:         rules,
		dir:           dir,
		tx:            tx,
		defaultStatus: defaultStatus,
		loc:           loc,
		rec:           rec,
		now:           time.Now,
	}
}

// Book creates an appointment after checking, inside one transaction, that
// the requested time is a slot of an active rule with free capacity.
func (s *Service) Book(ctx context.Context, p *auth.Principal, req BookRequest) (a *Appointment, err error) {
	defer func() { s.rec.BookingOutcome(err) }()

	a, err = s.prepare(p, req)
	if err != nil {
		return nil, err
	}
	if _, err = s.dir.GetDoctor(ctx, a.DoctorID); err != nil {
		return nil, err
	}
	if _, err = s.dir.GetHospital(ctx, a.HospitalID); err != nil {
		return nil, err
	}

	if err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.guard(ctx, a)
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) prepare(p *auth.Principal, req BookRequest) (*Appointment, error) {
	if p == nil {
		return nil, &apperr.AuthenticationError{Reason: "no authenticated user"}
	}
	patient := req.PatientID
	if patient == "" {
		if p.Role != auth.RolePatient {
			return nil, apperr.Invalid("patient_id", "is required")
		}
		patient = p.UserID
	}
	if err := auth.AuthorizePatient(p, patient); err != nil {
		return nil, err
	}

	patientID, err := parseID("patient_id", patient)
	if err != nil {
		return nil, err
	}
	doctorID, err := parseID("doctor_id", req.DoctorID)
	if err != nil {
		return nil, err
	}
	hospitalID, err := parseID("hospital_id", req.HospitalID)
	if err != nil {
		return nil, err
	}

	date, err := time.Parse(time.DateOnly, req.AppointmentDate)
	if err != nil {
		return nil, apperr.Invalid("appointment_date", "must be YYYY-MM-DD")
	}
	if date.Format(time.DateOnly) < s.now().In(s.loc).Format(time.DateOnly) {
		return nil, apperr.Invalid("appointment_date", "must not be in the past")
	}
	slot, err := availability.NormalizeClock(req.AppointmentTime)
	if err != nil {
		return nil, apperr.Invalid("appointment_time", "must be HH:MM")
	}
	if len(req.Notes) > MaxNotesLength {
		return nil, apperr.Invalid("notes", "must be at most %d characters", MaxNotesLength)
	}

	return &Appointment{
		PatientID:       patientID,
		DoctorID:        doctorID,
		HospitalID:      hospitalID,
		AppointmentDate: date.Format(time.DateOnly),
		AppointmentTime: slot,
		Status:          s.defaultStatus,
		Notes:           req.Notes,
	}, nil
}

// guard must run inside a transaction: the rule rows stay locked until
// commit, so the count below cannot be overtaken by a concurrent booking.
func (s *Service) guard(ctx context.Context, a *Appointment) error {
	date, _ := time.Parse(time.DateOnly, a.AppointmentDate)
	rules, err := s.rules.LockActive(ctx, a.DoctorID, a.HospitalID, availability.Weekday(date))
	if err != nil {
		return err
	}

	t, _ := availability.ParseClock(a.AppointmentTime)
	rule := availability.MatchRule(rules, t)
	if rule == nil {
		return &apperr.InvalidSlotError{Date: a.AppointmentDate, Time: a.AppointmentTime}
	}

	booked, err := s.repo.CountActive(ctx, a.DoctorID, a.HospitalID, a.AppointmentDate, a.AppointmentTime)
	if err != nil {
		return err
	}
	if booked >= rule.MaxPatients {
		return &apperr.SlotFullError{Date: a.AppointmentDate, Time: a.AppointmentTime, Capacity: rule.MaxPatients}
	}
	return s.repo.Create(ctx, a)
}

// Get returns an appointment to its patient, its doctor or an admin.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canView(p, a); err != nil {
		return nil, err
	}
	return a, nil
}

func canView(p *auth.Principal, a *Appointment) error {
	if p != nil && p.Role == auth.RoleDoctor {
		return auth.Authorize(p, a.DoctorID.String())
	}
	return auth.AuthorizePatient(p, a.PatientID.String())
}

// List applies role defaults to f: patients only see their own
// appointments and doctors only those booked with them.
func (s *Service) List(ctx context.Context, p *auth.Principal, f ListFilter) ([]*Appointment, int, error) {
	if p == nil {
		return nil, 0, &apperr.AuthenticationError{Reason: "no authenticated user"}
	}
	switch p.Role {
	case auth.RolePatient:
		if f.DoctorID != nil {
			return nil, 0, &apperr.AuthorizationError{Reason: "patients may only list their own appointments"}
		}
		if f.PatientID == nil {
			own, err := parseID("patient_id", p.UserID)
			if err != nil {
				return nil, 0, err
			}
			f.PatientID = &own
		}
	case auth.RoleDoctor:
		if f.PatientID != nil {
			return nil, 0, &apperr.AuthorizationError{Reason: "doctors list appointments by doctor_id"}
		}
		if f.DoctorID == nil {
			own, err := parseID("doctor_id", p.DoctorID)
			if err != nil {
				return nil, 0, err
			}
			f.DoctorID = &own
		}
	}

	switch {
	case f.PatientID != nil && f.DoctorID != nil:
		return nil, 0, apperr.Invalid("doctor_id", "cannot be combined with patient_id")
	case f.PatientID != nil:
		if err := auth.AuthorizePatient(p, f.PatientID.String()); err != nil {
			return nil, 0, err
		}
		return s.repo.ListByPatient(ctx, *f.PatientID, f.Limit, f.Offset)
	case f.DoctorID != nil:
		if err := auth.Authorize(p, f.DoctorID.String()); err != nil {
			return nil, 0, err
		}
		if _, err := s.dir.GetDoctor(ctx, *f.DoctorID); err != nil {
			return nil, 0, err
		}
		return s.repo.ListByDoctor(ctx, *f.DoctorID, f.Limit, f.Offset)
	default:
		return nil, 0, apperr.Invalid("patient_id", "patient_id or doctor_id is required")
	}
}

// ChangeStatus moves an appointment along its lifecycle. Doctors manage
// their own appointments; patients may only cancel theirs.
func (s *Service) ChangeStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, to string) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, apperr.Invalid("status", "must be one of pending, confirmed, completed, cancelled")
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case p != nil && p.Role == auth.RolePatient:
		if err := auth.AuthorizePatient(p, a.PatientID.String()); err != nil {
			return nil, err
		}
		if to != StatusCancelled {
			return nil, &apperr.AuthorizationError{Reason: "patients may only cancel appointments"}
		}
	default:
		if err := auth.Authorize(p, a.DoctorID.String()); err != nil {
			return nil, err
		}
	}

	from := a.Status
	if !CanTransition(from, to) {
		return nil, apperr.Invalid("status", "cannot change from %s to %s", from, to)
	}
	a.Status = to
	if err := s.repo.UpdateStatus(ctx, a, from); err != nil {
		return nil, err
	}
	return a, nil
}

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Invalid(field, "must be a UUID")
	}
	return id, nil
}
