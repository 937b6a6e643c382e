package formulary

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
	read.GET("/drugs", h.ListDrugs)
	read.GET("/drugs/:id", h.GetDrug)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/drugs", h.CreateDrug)
	write.PUT("/drugs/:id", h.UpdateDrug)
	write.DELETE("/drugs/:id", h.DeleteDrug)
	write.POST("/drugs/:id/stock", h.AdjustStock)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type drugRequest struct {
	Name   string          `json:"name" validate:"required,max=64"`
	Price  decimal.Decimal `json:"price"`
	Unit   string          `json:"unit" validate:"required,max=16"`
	Stock  int             `json:"stock" validate:"gte=0"`
	Status string          `json:"status" validate:"omitempty,oneof=enabled disabled"`
}

func (h *Handler) CreateDrug(c echo.Context) error {
	var req drugRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	d := &Drug{Name: req.Name, Price: req.Price, Unit: req.Unit, Stock: req.Stock, Status: req.Status}
	if err := h.svc.CreateDrug(c.Request().Context(), d); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDrug(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDrug(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDrugs(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"name", "status"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.SearchDrugs(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateDrug(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req DrugUpdate
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	d, err := h.svc.UpdateDrug(c.Request().Context(), id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDrug(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDrug(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type stockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func (h *Handler) AdjustStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req stockRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	d, err := h.svc.AdjustStock(c.Request().Context(), id, req.Delta)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
