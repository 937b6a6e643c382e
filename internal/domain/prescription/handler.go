package prescription

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
	read.GET("/prescriptions", h.ListPrescriptions)
	read.GET("/prescriptions/:id", h.GetPrescription)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	write.POST("/prescriptions", h.IssuePrescription)
	write.PUT("/prescriptions/:id/status", h.UpdateStatus)
}

// scope narrows a listing to what the caller may see: patients get their
// own prescriptions, doctors bound to a doctor record get theirs.
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

func visible(ctx context.Context, p *Prescription) bool {
	params := map[string]string{}
	scope(ctx, params)
	if v, ok := params["doctor_id"]; ok && p.DoctorID.String() != v {
		return false
	}
	if v, ok := params["patient_id"]; ok && p.PatientID != v {
		return false
	}
	return true
}

func callerDoctor(ctx context.Context) uuid.UUID {
	if auth.HasRole(ctx, auth.RoleAdmin) {
		return uuid.Nil
	}
	id, err := uuid.Parse(auth.DoctorIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

type issueRequest struct {
	RegistrationID string  `json:"registration_id" validate:"required,max=32"`
	Symptoms       string  `json:"symptoms" validate:"max=2000"`
	Diagnosis      string  `json:"diagnosis" validate:"required,max=2000"`
	Remark         *string `json:"remark" validate:"omitempty,max=2000"`
}

func (h *Handler) IssuePrescription(c echo.Context) error {
	var req issueRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	p, err := h.svc.Issue(ctx, NewPrescription{
		RegistrationID: req.RegistrationID,
		DoctorID:       callerDoctor(ctx),
		Symptoms:       req.Symptoms,
		Diagnosis:      req.Diagnosis,
		Remark:         req.Remark,
	})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPrescription(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !visible(ctx, p) {
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"registration_id", "patient_id", "doctor_id", "status"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	scope(ctx, params)
	items, total, err := h.svc.SearchPrescriptions(ctx, params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=void archived"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPrescription(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !visible(ctx, p) {
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	}
	p, err = h.svc.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}
