package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
)

// RequireRole returns middleware that admits principals holding one of roles.
// Admins are always admitted.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return &apperr.AuthenticationError{Reason: "no authenticated user"}
			}
			if p.IsAdmin() {
				return next(c)
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			return &apperr.AuthorizationError{
				Reason: fmt.Sprintf("required role: %s", strings.Join(roles, " or ")),
			}
		}
	}
}

// Authorize decides whether p may act on data owned by ownerDoctorID. Admins
// may act on anything, doctors only on their own records.
func Authorize(p *Principal, ownerDoctorID string) error {
	switch {
	case p == nil:
		return &apperr.AuthenticationError{Reason: "no authenticated user"}
	case p.Role == RoleAdmin:
		return nil
	case p.Role == RoleDoctor && p.DoctorID != "" && p.DoctorID == ownerDoctorID:
		return nil
	case p.Role == RoleDoctor:
		return &apperr.AuthorizationError{Reason: "doctors may only manage their own records"}
	default:
		return &apperr.AuthorizationError{Reason: "role " + p.Role + " may not manage doctor records"}
	}
}

// AuthorizePatient decides whether p may act for patientID. Admins may act
// for anyone, patients only for themselves.
func AuthorizePatient(p *Principal, patientID string) error {
	switch {
	case p == nil:
		return &apperr.AuthenticationError{Reason: "no authenticated user"}
	case p.Role == RoleAdmin:
		return nil
	case p.Role == RolePatient && p.UserID == patientID:
		return nil
	default:
		return &apperr.AuthorizationError{Reason: "not allowed to act for this patient"}
	}
}
