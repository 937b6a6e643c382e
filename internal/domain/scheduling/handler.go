package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

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
	// Read endpoints – every signed-in role
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient))
	read.GET("/schedules", h.ListSchedules)
	read.GET("/schedules/:id", h.GetSchedule)

	// Write endpoints – admin
	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/schedules", h.CreateSchedule)
	write.POST("/schedules/generate", h.GenerateSlots)
	write.PUT("/schedules/:id", h.UpdateSchedule)
	write.DELETE("/schedules/:id", h.DeleteSchedule)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type scheduleRequest struct {
	DoctorID    uuid.UUID       `json:"doctor_id" validate:"required"`
	Date        string          `json:"date" validate:"required"`
	TimeSlot    string          `json:"time_slot" validate:"required,max=32"`
	MaxPatients int             `json:"max_patients" validate:"gte=0"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status" validate:"omitempty,oneof=enabled disabled"`
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	sched := &Schedule{
		DoctorID:    req.DoctorID,
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		MaxPatients: req.MaxPatients,
		Amount:      req.Amount,
		Status:      req.Status,
	}
	if err := h.svc.CreateSchedule(c.Request().Context(), sched); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, sched)
}

type generateRequest struct {
	Date      string      `json:"date" validate:"required"`
	DoctorIDs []uuid.UUID `json:"doctor_ids"`
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	var req generateRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	created, err := h.svc.GenerateSlots(c.Request().Context(), req.Date, req.DoctorIDs)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if created == nil {
		created = []*Schedule{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"created":   len(created),
		"schedules": created,
	})
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"doctor_id", "department_id", "date", "status"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.SearchSchedules(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ScheduleUpdate
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	sched, err := h.svc.UpdateSchedule(c.Request().Context(), id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSchedule(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
