// Package apperr defines the error taxonomy shared by the domain services and
// the HTTP layer. Every error is a typed struct so callers match with
// errors.As and the HTTP layer maps it to a status code in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed or out-of-range input for a named field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthenticationError means the request carries no usable session.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string { return "unauthenticated: " + e.Reason }

// AuthorizationError means the caller is authenticated but not allowed.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "forbidden: " + e.Reason }

// NotFoundError reports a missing doctor, hospital, rule or appointment.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// SlotFullError is returned by the booking guard when the slot has no
// remaining capacity.
type SlotFullError struct {
	Date     string
	Time     string
	Capacity int
}

func (e *SlotFullError) Error() string {
	return fmt.Sprintf("slot %s %s is full (capacity %d)", e.Date, e.Time, e.Capacity)
}

// InvalidSlotError is returned when the requested time is not a candidate
// start of any active availability rule.
type InvalidSlotError struct {
	Date string
	Time string
}

func (e *InvalidSlotError) Error() string {
	return fmt.Sprintf("no bookable slot at %s %s", e.Date, e.Time)
}

// OverlapError is returned when an active availability rule would intersect
// another active rule of the same doctor, hospital and weekday.
type OverlapError struct {
	ConflictingID string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("availability overlaps existing rule %s", e.ConflictingID)
}

// DuplicateBookingError is returned when the patient already holds an active
// booking for the same slot.
type DuplicateBookingError struct{}

func (e *DuplicateBookingError) Error() string {
	return "patient already has an active booking for this slot"
}

// StorageError wraps an underlying database failure. Its message is never
// sent to clients.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it is nil or already belongs to
// the taxonomy.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Known(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Known reports whether err (or something it wraps) is one of the typed
// errors of this package.
func Known(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError || isStorage(err)
}

func isStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// HTTPStatus maps err to the response status code. Unknown errors map to 500.
func HTTPStatus(err error) int {
	var (
		ve  *ValidationError
		ae  *AuthenticationError
		ze  *AuthorizationError
		nf  *NotFoundError
		sf  *SlotFullError
		is  *InvalidSlotError
		ov  *OverlapError
		dup *DuplicateBookingError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &is):
		return http.StatusBadRequest
	case errors.As(err, &ae):
		return http.StatusUnauthorized
	case errors.As(err, &ze):
		return http.StatusForbidden
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &sf), errors.As(err, &ov), errors.As(err, &dup):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	var (
		ve  *ValidationError
		ae  *AuthenticationError
		ze  *AuthorizationError
		nf  *NotFoundError
		sf  *SlotFullError
		is  *InvalidSlotError
		ov  *OverlapError
		dup *DuplicateBookingError
	)
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &ae):
		return "authentication_error"
	case errors.As(err, &ze):
		return "authorization_error"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &sf):
		return "slot_full"
	case errors.As(err, &is):
		return "invalid_slot"
	case errors.As(err, &ov):
		return "overlapping_availability"
	case errors.As(err, &dup):
		return "duplicate_booking"
	default:
		return "storage_error"
	}
}

// Field returns the offending field of a ValidationError, or "".
func Field(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
