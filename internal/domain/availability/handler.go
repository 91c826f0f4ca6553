package availability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the rule endpoints for admins and doctors, and the
// slot listing for every authenticated role.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	rules := api.Group("/availability", auth.RequireRole(auth.RoleDoctor))
	rules.GET("", h.ListRules)
	rules.POST("", h.CreateRule)
	rules.GET("/:id", h.GetRule)
	rules.PUT("/:id", h.UpdateRule)
	rules.DELETE("/:id", h.DeleteRule)

	api.GET("/slots", h.ListSlots)
}

func principal(c echo.Context) *auth.Principal {
	return auth.PrincipalFromContext(c.Request().Context())
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Invalid("id", "must be a UUID")
	}
	return id, nil
}

func queryID(c echo.Context, name string, required bool) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		if required {
			return nil, apperr.Invalid(name, "is required")
		}
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperr.Invalid(name, "must be a UUID")
	}
	return &id, nil
}

func (h *Handler) CreateRule(c echo.Context) error {
	var in RuleInput
	if err := c.Bind(&in); err != nil {
		return apperr.Invalid("body", "malformed JSON")
	}
	rule, err := h.svc.Create(c.Request().Context(), principal(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) GetRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	rule, err := h.svc.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) ListRules(c echo.Context) error {
	doctorID, err := queryID(c, "doctor_id", false)
	if err != nil {
		return err
	}
	p := principal(c)
	if doctorID == nil {
		if p == nil || p.DoctorID == "" {
			return apperr.Invalid("doctor_id", "is required")
		}
		own, err := uuid.Parse(p.DoctorID)
		if err != nil {
			return apperr.Invalid("doctor_id", "is required")
		}
		doctorID = &own
	}
	hospitalID, err := queryID(c, "hospital_id", false)
	if err != nil {
		return err
	}

	rules, err := h.svc.List(c.Request().Context(), p, *doctorID, hospitalID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": rules})
}

func (h *Handler) UpdateRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var patch RulePatch
	if err := c.Bind(&patch); err != nil {
		return apperr.Invalid("body", "malformed JSON")
	}
	rule, err := h.svc.Update(c.Request().Context(), principal(c), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}

// ListSlots handles GET /slots?doctor_id=&hospital_id=&date=YYYY-MM-DD[&days=N].
func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := queryID(c, "doctor_id", true)
	if err != nil {
		return err
	}
	hospitalID, err := queryID(c, "hospital_id", true)
	if err != nil {
		return err
	}
	date, err := time.Parse(time.DateOnly, c.QueryParam("date"))
	if err != nil {
		return apperr.Invalid("date", "must be YYYY-MM-DD")
	}
	days := DefaultDays
	if v := c.QueryParam("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil {
			return apperr.Invalid("days", "must be an integer")
		}
	}

	out, err := h.svc.ListSlots(c.Request().Context(), *doctorID, *hospitalID, date, days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id":   doctorID,
		"hospital_id": hospitalID,
		"days":        out,
	})
}
