package patient

import (
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
	own := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePatient))
	own.GET("/patients/profile", h.GetProfile)
	own.PUT("/patients/profile", h.UpdateProfile)
	own.GET("/patients/history", h.History)

	api.GET("/patients/queue", h.Queue, auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
}

// patientID resolves whose record a request addresses. Patients always get
// their own; admins name the patient with ?patient_id=.
func patientID(c echo.Context) (string, error) {
	ctx := c.Request().Context()
	if auth.HasRole(ctx, auth.RoleAdmin) {
		id := c.QueryParam("patient_id")
		if id == "" {
			return "", echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
		}
		return id, nil
	}
	return auth.UserIDFromContext(ctx), nil
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProfile(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var req ProfileUpdate
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	p, err := h.svc.SaveProfile(c.Request().Context(), id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) History(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	visits, total, err := h.svc.History(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg))
}

type queueResponse struct {
	Data  []*QueueEntry `json:"data"`
	Total int           `json:"total"`
}

// Queue serves the calling doctor's queue. Admins pick the doctor with
// ?doctor_id=.
func (h *Handler) Queue(c echo.Context) error {
	ctx := c.Request().Context()
	raw := auth.DoctorIDFromContext(ctx)
	if auth.HasRole(ctx, auth.RoleAdmin) {
		if raw = c.QueryParam("doctor_id"); raw == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
		}
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusForbidden, "no doctor record is bound to this account")
	}
	doctorID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	entries, err := h.svc.Queue(ctx, doctorID, c.QueryParam("date"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, queueResponse{Data: entries, Total: len(entries)})
}
