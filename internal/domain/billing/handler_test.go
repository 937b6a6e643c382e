package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/outpatient/ledger/internal/platform/auth"
	"github.com/outpatient/ledger/internal/platform/validate"
)

func newTestHandler(t *testing.T) (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv(t)
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(env.svc), env, e
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func as(req *http.Request, userID string, roles ...string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
	return req.WithContext(ctx)
}

func expectHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
}

func TestHandler_CreatePayment(t *testing.T) {
	h, env, e := newTestHandler(t)
	s := env.schedule(t, 10, "50.00")
	r := env.book(t, s.ID)

	rec := httptest.NewRecorder()
	c := e.NewContext(as(jsonRequest(http.MethodPost, `{"registration_id":"`+r.ID+`","payment_method":"card"}`), "admin-1", auth.RoleAdmin), rec)
	if err := h.CreatePayment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Payment
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Amount.String() != "50" {
		t.Errorf("expected amount 50, got %s", p.Amount)
	}

	c = e.NewContext(as(jsonRequest(http.MethodPost, `{"registration_id":"`+r.ID+`","payment_method":"card"}`), "p1", auth.RolePatient), httptest.NewRecorder())
	expectHTTPStatus(t, h.CreatePayment(c), http.StatusConflict)
}

func TestHandler_CreatePayment_OtherPatient(t *testing.T) {
	h, env, e := newTestHandler(t)
	r := env.book(t, env.schedule(t, 10, "50.00").ID)

	req := as(jsonRequest(http.MethodPost, `{"registration_id":"`+r.ID+`","payment_method":"cash"}`), "p2", auth.RolePatient)
	expectHTTPStatus(t, h.CreatePayment(e.NewContext(req, httptest.NewRecorder())), http.StatusNotFound)
}

func TestHandler_CreatePayment_BadMethod(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(jsonRequest(http.MethodPost, `{"registration_id":"GH1","payment_method":"barter"}`), httptest.NewRecorder())
	expectHTTPStatus(t, h.CreatePayment(c), http.StatusBadRequest)
}

func TestHandler_RefundPayment(t *testing.T) {
	h, env, e := newTestHandler(t)
	s := env.schedule(t, 10, "50.00")
	p := env.pay(t, env.book(t, s.ID).ID)

	refund := func() error {
		c := e.NewContext(jsonRequest(http.MethodPut, `{"reason":"duplicate booking"}`), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(p.ID.String())
		return h.RefundPayment(c)
	}
	if err := refund(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectHTTPStatus(t, refund(), http.StatusConflict)
}

func TestHandler_RefundPayment_NotFound(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(jsonRequest(http.MethodPut, `{}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPStatus(t, h.RefundPayment(c), http.StatusNotFound)
}

func TestHandler_Checkout_UsesCaller(t *testing.T) {
	h, env, e := newTestHandler(t)
	s := env.schedule(t, 5, "20")

	req := jsonRequest(http.MethodPost, `{"schedule_id":"`+s.ID.String()+`","patient_id":"not-me","payment_method":"cash"}`)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "patient-7")
	ctx = context.WithValue(ctx, auth.UserNameKey, "Zhang San")
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{auth.RolePatient})
	rec := httptest.NewRecorder()
	if err := h.Checkout(e.NewContext(req.WithContext(ctx), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Registration struct {
			PatientID   string `json:"patient_id"`
			PatientName string `json:"patient_name"`
		} `json:"registration"`
		Payment struct {
			Status string `json:"status"`
		} `json:"payment"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Registration.PatientID != "patient-7" || resp.Registration.PatientName != "Zhang San" {
		t.Errorf("unexpected registration %+v", resp.Registration)
	}
	if resp.Payment.Status != StatusPaid {
		t.Errorf("expected paid, got %s", resp.Payment.Status)
	}
}

func TestHandler_GetReceipt(t *testing.T) {
	h, env, e := newTestHandler(t)
	s := env.schedule(t, 10, "50.00")
	p := env.pay(t, env.book(t, s.ID).ID)

	rec := httptest.NewRecorder()
	c := e.NewContext(as(httptest.NewRequest(http.MethodGet, "/", nil), "p1", auth.RolePatient), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.GetReceipt(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Error("body is not a PDF")
	}
}

func TestHandler_GetReceipt_OtherPatient(t *testing.T) {
	h, env, e := newTestHandler(t)
	p := env.pay(t, env.book(t, env.schedule(t, 10, "50.00").ID).ID)

	c := e.NewContext(as(httptest.NewRequest(http.MethodGet, "/", nil), "p2", auth.RolePatient), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	expectHTTPStatus(t, h.GetReceipt(c), http.StatusNotFound)
}
