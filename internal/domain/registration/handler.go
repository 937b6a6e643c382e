package registration

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/auth"
	"github.com/outpatient/ledger/internal/platform/validate"
	"github.com/outpatient/ledger/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient))
	read.GET("/registrations", h.ListRegistrations)
	read.GET("/registrations/:id", h.GetRegistration)

	book := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePatient))
	book.POST("/registrations", h.CreateRegistration)
	book.PUT("/registrations/:id/cancel", h.CancelRegistration)

	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	staff.PUT("/registrations/:id/confirm", h.ConfirmRegistration)
}

// patientScope returns the caller's id when the caller may only see their
// own registrations, and "" for staff.
func patientScope(ctx context.Context) string {
	if auth.HasRole(ctx, auth.RoleAdmin) || auth.HasRole(ctx, auth.RoleDoctor) {
		return ""
	}
	if auth.HasRole(ctx, auth.RolePatient) {
		return auth.UserIDFromContext(ctx)
	}
	return ""
}

// scope narrows a query to the caller: patients get their own
// registrations, doctors bound to a doctor record get their bookings.
func scope(ctx context.Context, params map[string]string) {
	if auth.HasRole(ctx, auth.RoleAdmin) {
		return
	}
	if auth.HasRole(ctx, auth.RoleDoctor) {
		if id := auth.DoctorIDFromContext(ctx); id != "" {
			params["doctor_id"] = id
		}
		return
	}
	params["patient_id"] = auth.UserIDFromContext(ctx)
}

func visible(ctx context.Context, reg *Registration) bool {
	params := map[string]string{}
	scope(ctx, params)
	if v, ok := params["doctor_id"]; ok && reg.DoctorID.String() != v {
		return false
	}
	if v, ok := params["patient_id"]; ok && reg.PatientID != v {
		return false
	}
	return true
}

// load fetches the registration, hiding records outside the caller's scope.
func (h *Handler) load(c echo.Context) (*Registration, error) {
	ctx := c.Request().Context()
	reg, err := h.svc.GetRegistration(ctx, c.Param("id"))
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if !visible(ctx, reg) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "registration not found")
	}
	return reg, nil
}

type createRequest struct {
	ScheduleID  uuid.UUID `json:"schedule_id" validate:"required"`
	PatientID   string    `json:"patient_id" validate:"omitempty,max=64"`
	PatientName string    `json:"patient_name" validate:"omitempty,max=64"`
}

func (h *Handler) CreateRegistration(c echo.Context) error {
	var req createRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	in := NewRegistration{ScheduleID: req.ScheduleID, PatientID: req.PatientID, PatientName: req.PatientName}
	if scope := patientScope(ctx); scope != "" {
		in.PatientID = scope
	}
	if in.PatientID == "" {
		in.PatientID = auth.UserIDFromContext(ctx)
	}
	if in.PatientName == "" {
		in.PatientName = auth.UserNameFromContext(ctx)
	}

	reg, err := h.svc.CreateRegistration(ctx, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, reg)
}

func (h *Handler) GetRegistration(c echo.Context) error {
	reg, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reg)
}

func (h *Handler) ListRegistrations(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"patient_id", "doctor_id", "department_id", "schedule_id", "status", "date"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	scope(ctx, params)
	items, total, err := h.svc.SearchRegistrations(ctx, params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ConfirmRegistration(c echo.Context) error {
	if _, err := h.load(c); err != nil {
		return err
	}
	reg, err := h.svc.ConfirmRegistration(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, reg)
}

func (h *Handler) CancelRegistration(c echo.Context) error {
	if _, err := h.load(c); err != nil {
		return err
	}
	reg, err := h.svc.CancelRegistration(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, reg)
}
