package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment is one patient booking of a slot. AppointmentDate is
// "YYYY-MM-DD" and AppointmentTime "HH:MM".
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	HospitalID      uuid.UUID `json:"hospital_id"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Active reports whether the appointment occupies capacity.
func (a *Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// BookRequest is the body of POST /appointments. PatientID may be omitted
// when a patient books for themselves.
type BookRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	HospitalID      string `json:"hospital_id"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Notes           string `json:"notes"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// ListFilter selects appointments by patient or by doctor. Exactly one of
// the ids is set once the service has applied role defaults.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Limit     int
	Offset    int
}

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// ValidStatus reports whether s is one of the four appointment statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an appointment may move from one status to
// another. Completed and cancelled are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
