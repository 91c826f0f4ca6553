package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// ErrorHandler renders every error as {"error": {"code", "message", "field"}}.
// Server-side failures are logged with their cause and answered with an
// opaque message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := renderError(err)
		if status >= http.StatusInternalServerError {
			evt := logger.Error().Err(err).
				Str("request_id", requestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path)
			var se *apperr.StorageError
			if errors.As(err, &se) {
				evt = evt.Str("op", se.Op)
			}
			evt.Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Str("request_id", requestID(c)).Msg("failed to write error response")
		}
	}
}

func renderError(err error) (int, errorBody) {
	var he *echo.HTTPError
	if !apperr.Known(err) && errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, errorBody{Error: errorDetail{Code: "internal_error", Message: "internal server error"}}
		}
		return he.Code, errorBody{Error: errorDetail{
			Code:    httpErrorCode(he.Code),
			Message: fmt.Sprint(he.Message),
		}}
	}

	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		code := "internal_error"
		var se *apperr.StorageError
		if errors.As(err, &se) {
			code = "storage_error"
		}
		return status, errorBody{Error: errorDetail{Code: code, Message: "internal server error"}}
	}

	msg := err.Error()
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Message
	}
	return status, errorBody{Error: errorDetail{
		Code:    apperr.Code(err),
		Message: msg,
		Field:   apperr.Field(err),
	}}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusForbidden:
		return "authorization_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	default:
		return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
	}
}
