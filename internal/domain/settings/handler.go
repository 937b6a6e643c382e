package settings

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/auth"
	"github.com/outpatient/ledger/internal/platform/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/settings", h.Get, auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient))
	api.PUT("/settings", h.Update, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Get(c echo.Context) error {
	s, err := h.svc.Get(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Update(c echo.Context) error {
	var req Update
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	s, err := h.svc.Update(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}
