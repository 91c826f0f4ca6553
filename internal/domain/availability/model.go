package availability

import (
	"time"

	"github.com/google/uuid"
)

// Rule is a recurring weekly window in which a doctor takes appointments at
// a hospital. Times are "HH:MM" and DayOfWeek is 0 (Sunday) to 6.
type Rule struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	HospitalID   uuid.UUID `json:"hospital_id"`
	DayOfWeek    int       `json:"day_of_week"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	SlotDuration int       `json:"slot_duration"`
	MaxPatients  int       `json:"max_patients"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RuleInput is the body of a create request. Pointer fields distinguish
// "missing" from zero.
type RuleInput struct {
	DoctorID     string `json:"doctor_id"`
	HospitalID   string `json:"hospital_id"`
	DayOfWeek    *int   `json:"day_of_week"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	SlotDuration *int   `json:"slot_duration"`
	MaxPatients  *int   `json:"max_patients"`
	IsActive     *bool  `json:"is_active"`
}

// RulePatch is the body of an update request; nil fields keep their stored
// value.
type RulePatch struct {
	DoctorID     *string `json:"doctor_id"`
	HospitalID   *string `json:"hospital_id"`
	DayOfWeek    *int    `json:"day_of_week"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	SlotDuration *int    `json:"slot_duration"`
	MaxPatients  *int    `json:"max_patients"`
	IsActive     *bool   `json:"is_active"`
}

// Slot is one bookable start time derived from a rule.
type Slot struct {
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	BookedCount int       `json:"booked_count"`
	MaxPatients int       `json:"max_patients"`
	RuleID      uuid.UUID `json:"rule_id"`
}

// DaySlots holds the derived slots of one calendar date.
type DaySlots struct {
	Date      string `json:"date"`
	DayOfWeek int    `json:"day_of_week"`
	Slots     []Slot `json:"slots"`
}
