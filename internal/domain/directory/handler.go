package directory

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
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient))
	read.GET("/departments", h.ListDepartments)
	read.GET("/departments/:id", h.GetDepartment)
	read.GET("/doctors", h.ListDoctors)
	read.GET("/doctors/:id", h.GetDoctor)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/departments", h.CreateDepartment)
	write.PUT("/departments/:id", h.UpdateDepartment)
	write.DELETE("/departments/:id", h.DeleteDepartment)
	write.POST("/doctors", h.CreateDoctor)
	write.PUT("/doctors/:id", h.UpdateDoctor)
	write.DELETE("/doctors/:id", h.DeleteDoctor)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Department Handlers --

type departmentRequest struct {
	Name        string  `json:"name" validate:"required,max=64"`
	Description *string `json:"description" validate:"omitempty,max=512"`
	Status      string  `json:"status" validate:"omitempty,oneof=enabled disabled"`
}

func (h *Handler) CreateDepartment(c echo.Context) error {
	var req departmentRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	d := &Department{Name: req.Name, Description: req.Description, Status: req.Status}
	if err := h.svc.CreateDepartment(c.Request().Context(), d); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDepartments(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req DepartmentUpdate
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	d, err := h.svc.UpdateDepartment(c.Request().Context(), id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDepartment(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctor Handlers --

type doctorRequest struct {
	DepartmentID    uuid.UUID       `json:"department_id" validate:"required"`
	Name            string          `json:"name" validate:"required,max=64"`
	Title           *string         `json:"title" validate:"omitempty,max=64"`
	Specialty       *string         `json:"specialty" validate:"omitempty,max=256"`
	MaxAppointments int             `json:"max_appointments" validate:"gte=0"`
	Fee             decimal.Decimal `json:"fee"`
}

func (r doctorRequest) toDoctor() *Doctor {
	return &Doctor{
		DepartmentID:    r.DepartmentID,
		Name:            r.Name,
		Title:           r.Title,
		Specialty:       r.Specialty,
		MaxAppointments: r.MaxAppointments,
		Fee:             r.Fee,
	}
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req doctorRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	d := req.toDoctor()
	if err := h.svc.CreateDoctor(c.Request().Context(), d); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"department_id", "name"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.SearchDoctors(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req doctorRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	d := req.toDoctor()
	d.ID = id
	if err := h.svc.UpdateDoctor(c.Request().Context(), d); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
