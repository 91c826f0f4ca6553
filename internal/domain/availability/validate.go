package availability

import (
	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
)

const (
	MinSlotDuration = 15
	MaxSlotDuration = 120
	MinPatients     = 1
	MaxPatients     = 50
)

// NewRule validates a create request and returns the normalised rule.
// is_active defaults to true.
func NewRule(in RuleInput) (*Rule, error) {
	doctorID, err := parseID("doctor_id", in.DoctorID)
	if err != nil {
		return nil, err
	}
	hospitalID, err := parseID("hospital_id", in.HospitalID)
	if err != nil {
		return nil, err
	}
	if in.DayOfWeek == nil {
		return nil, apperr.Invalid("day_of_week", "is required")
	}
	if in.SlotDuration == nil {
		return nil, apperr.Invalid("slot_duration", "is required")
	}
	if in.MaxPatients == nil {
		return nil, apperr.Invalid("max_patients", "is required")
	}

	r := &Rule{
		DoctorID:     doctorID,
		HospitalID:   hospitalID,
		DayOfWeek:    *in.DayOfWeek,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		SlotDuration: *in.SlotDuration,
		MaxPatients:  *in.MaxPatients,
		IsActive:     true,
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyPatch merges p over a copy of stored and validates the result. The
// doctor and hospital of a rule cannot change.
func ApplyPatch(stored Rule, p RulePatch) (*Rule, error) {
	r := stored
	if p.DoctorID != nil && *p.DoctorID != stored.DoctorID.String() {
		return nil, apperr.Invalid("doctor_id", "cannot be changed")
	}
	if p.HospitalID != nil && *p.HospitalID != stored.HospitalID.String() {
		return nil, apperr.Invalid("hospital_id", "cannot be changed")
	}
	if p.DayOfWeek != nil {
		r.DayOfWeek = *p.DayOfWeek
	}
	if p.StartTime != nil {
		r.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		r.EndTime = *p.EndTime
	}
	if p.SlotDuration != nil {
		r.SlotDuration = *p.SlotDuration
	}
	if p.MaxPatients != nil {
		r.MaxPatients = *p.MaxPatients
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	if err := Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the rule's fields and rewrites its times zero-padded.
func Validate(r *Rule) error {
	if r.DoctorID == uuid.Nil {
		return apperr.Invalid("doctor_id", "is required")
	}
	if r.HospitalID == uuid.Nil {
		return apperr.Invalid("hospital_id", "is required")
	}
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return apperr.Invalid("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
	}

	start, err := ParseClock(r.StartTime)
	if err != nil {
		return apperr.Invalid("start_time", "must be HH:MM in 24-hour time")
	}
	end, err := ParseClock(r.EndTime)
	if err != nil {
		return apperr.Invalid("end_time", "must be HH:MM in 24-hour time")
	}
	if start >= end {
		return apperr.Invalid("end_time", "must be after start_time")
	}

	if r.SlotDuration < MinSlotDuration || r.SlotDuration > MaxSlotDuration {
		return apperr.Invalid("slot_duration", "must be between %d and %d minutes", MinSlotDuration, MaxSlotDuration)
	}
	if r.MaxPatients < MinPatients || r.MaxPatients > MaxPatients {
		return apperr.Invalid("max_patients", "must be between %d and %d", MinPatients, MaxPatients)
	}

	r.StartTime = start.String()
	r.EndTime = end.String()
	return nil
}

func parseID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, apperr.Invalid(field, "is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Invalid(field, "must be a UUID")
	}
	return id, nil
}
