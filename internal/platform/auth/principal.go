package auth

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hms/hms/internal/platform/apperr"
)

// Application roles, as stored in profiles.role.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Principal is the authenticated caller. DoctorID is set only for doctors
// and links the auth user to its row in the doctors table.
type Principal struct {
	UserID   string
	Role     string
	DoctorID string
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// PrincipalResolver loads the role and doctor link for an auth user id.
// It returns an *apperr.NotFoundError when the user has no profile.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID string) (*Principal, error)
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}

// ResolvePrincipal turns the user id left by the token middleware into a
// Principal. Requests already carrying one (development mode) pass through.
func ResolvePrincipal(resolver PrincipalResolver, skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			ctx := c.Request().Context()
			if PrincipalFromContext(ctx) != nil {
				return next(c)
			}

			uid := UserIDFromContext(ctx)
			if uid == "" {
				return &apperr.AuthenticationError{Reason: "no authenticated user"}
			}

			p, err := resolver.Resolve(ctx, uid)
			if err != nil {
				var nf *apperr.NotFoundError
				if errors.As(err, &nf) {
					return &apperr.AuthorizationError{Reason: "user has no profile"}
				}
				return apperr.Storage("resolve principal", err)
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			return next(c)
		}
	}
}
