package account

import (
	"net/http"

	"github.com/google/uuid"
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
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me, auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient))
	api.POST("/accounts", h.CreateAccount, auth.RequireRole(auth.RoleAdmin))
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	res, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

type accountRequest struct {
	Username    string     `json:"username" validate:"required,max=64"`
	Password    string     `json:"password" validate:"required,password"`
	Role        string     `json:"role" validate:"required,oneof=admin doctor patient"`
	DisplayName string     `json:"display_name" validate:"omitempty,max=64"`
	DoctorID    *uuid.UUID `json:"doctor_id"`
}

func (h *Handler) CreateAccount(c echo.Context) error {
	var req accountRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	a, err := h.svc.CreateAccount(c.Request().Context(), NewAccount{
		Username:    req.Username,
		Password:    req.Password,
		Role:        req.Role,
		DisplayName: req.DisplayName,
		DoctorID:    req.DoctorID,
	})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

type meResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles"`
	DoctorID string   `json:"doctor_id,omitempty"`
	Home     string   `json:"home"`
}

// Me echoes the caller's identity as carried by the token.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	roles := auth.RolesFromContext(ctx)
	resp := meResponse{
		ID:       auth.UserIDFromContext(ctx),
		Name:     auth.UserNameFromContext(ctx),
		Roles:    roles,
		DoctorID: auth.DoctorIDFromContext(ctx),
	}
	if len(roles) > 0 {
		resp.Home = Home(roles[0])
	}
	return c.JSON(http.StatusOK, resp)
}
