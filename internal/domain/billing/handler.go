package billing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/domain/registration"
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
	pay := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePatient))
	pay.POST("/payments", h.CreatePayment)
	pay.POST("/checkout", h.Checkout)
	pay.GET("/payments/:id/receipt", h.GetReceipt)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/payments", h.ListPayments)
	admin.GET("/payments/:id", h.GetPayment)
	admin.PUT("/payments/:id/refund", h.RefundPayment)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// checkOwner hides registrations of other patients from a patient caller.
func (h *Handler) checkOwner(ctx context.Context, registrationID string) error {
	if auth.HasRole(ctx, auth.RoleAdmin) {
		return nil
	}
	reg, err := h.svc.regs.GetRegistration(ctx, registrationID)
	if err != nil {
		return err
	}
	if reg.PatientID != auth.UserIDFromContext(ctx) {
		return fmt.Errorf("registration %s: %w", registrationID, apperr.ErrNotFound)
	}
	return nil
}

type paymentRequest struct {
	RegistrationID string           `json:"registration_id" validate:"required"`
	Amount         *decimal.Decimal `json:"amount"`
	PaymentMethod  string           `json:"payment_method" validate:"required,oneof=cash card wechat alipay"`
}

func (h *Handler) CreatePayment(c echo.Context) error {
	var req paymentRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	if err := h.checkOwner(ctx, req.RegistrationID); err != nil {
		return apperr.ToHTTP(err)
	}
	p, err := h.svc.CreatePayment(ctx, NewPayment{
		RegistrationID: req.RegistrationID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

type refundRequest struct {
	Reason string `json:"reason" validate:"max=256"`
}

func (h *Handler) RefundPayment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req refundRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	p, err := h.svc.RefundPayment(c.Request().Context(), id, req.Reason)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

type checkoutRequest struct {
	ScheduleID    uuid.UUID `json:"schedule_id" validate:"required"`
	PatientID     string    `json:"patient_id" validate:"omitempty,max=64"`
	PatientName   string    `json:"patient_name" validate:"omitempty,max=64"`
	PaymentMethod string    `json:"payment_method" validate:"required,oneof=cash card wechat alipay"`
}

type checkoutResponse struct {
	Registration *registration.Registration `json:"registration"`
	Payment      *Payment                   `json:"payment"`
}

func (h *Handler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	in := Checkout{
		ScheduleID:    req.ScheduleID,
		PatientID:     req.PatientID,
		PatientName:   req.PatientName,
		PaymentMethod: req.PaymentMethod,
	}
	if !auth.HasRole(ctx, auth.RoleAdmin) || in.PatientID == "" {
		in.PatientID = auth.UserIDFromContext(ctx)
	}
	if in.PatientName == "" {
		in.PatientName = auth.UserNameFromContext(ctx)
	}
	reg, p, err := h.svc.Checkout(ctx, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, checkoutResponse{Registration: reg, Payment: p})
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"registration_id", "status", "payment_method", "patient_name"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.SearchPayments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetReceipt(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !auth.HasRole(ctx, auth.RoleAdmin) {
		p, err := h.svc.GetPayment(ctx, id)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		if err := h.checkOwner(ctx, p.RegistrationID); err != nil {
			return apperr.ToHTTP(err)
		}
	}
	data, err := h.svc.Receipt(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="receipt-`+id.String()+`.pdf"`)
	return c.Blob(http.StatusOK, receiptContentType, data)
}
