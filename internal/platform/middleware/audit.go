package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

// AuditEntry records who changed availability or appointments.
type AuditEntry struct {
	UserID     string
	Role       string
	Action     string
	Resource   string
	ResourceID string
	Path       string
	Method     string
	StatusCode int
	RequestID  string
	IPAddress  string
	Timestamp  time.Time
}

// AuditRecorder persists audit entries. Without one, Audit writes them to
// the logger.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit records every mutating /api/v1 request after it has been handled.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			action := auditAction(req.Method)
			if action == "" || !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			resource, id := resourceFromPath(req.URL.Path)
			entry := AuditEntry{
				Action:     action,
				Resource:   resource,
				ResourceID: id,
				Path:       req.URL.Path,
				Method:     req.Method,
				StatusCode: c.Response().Status,
				RequestID:  requestID(c),
				IPAddress:  c.RealIP(),
				Timestamp:  time.Now().UTC(),
			}
			if p := auth.PrincipalFromContext(req.Context()); p != nil {
				entry.UserID = p.UserID
				entry.Role = p.Role
			}
			if err != nil {
				entry.StatusCode, _ = renderError(err)
			}

			if len(recorders) == 0 {
				logger.Info().
					Str("audit_action", entry.Action).
					Str("resource", entry.Resource).
					Str("resource_id", entry.ResourceID).
					Str("user_id", entry.UserID).
					Str("role", entry.Role).
					Str("request_id", entry.RequestID).
					Int("status", entry.StatusCode).
					Bool("failed", err != nil).
					Msg("audit")
			}
			for _, r := range recorders {
				if rerr := r.RecordAccess(entry); rerr != nil {
					logger.Error().Err(rerr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}
			return err
		}
	}
}

func auditAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}

// resourceFromPath maps /api/v1/appointments/{id}/status to
// ("appointments", "{id}").
func resourceFromPath(path string) (string, string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	resource := parts[0]
	if len(parts) > 1 {
		return resource, parts[1]
	}
	return resource, ""
}
