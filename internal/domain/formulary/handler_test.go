package formulary

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/outpatient/ledger/internal/platform/validate"
	"github.com/outpatient/ledger/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(newTestService())
	e := echo.New()
	e.Validator = validate.New()
	return h, e
}

func jsonContext(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
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

func TestHandler_CreateDrug(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonContext(e, `{"name":"Amoxicillin","price":"12.50","unit":"box","stock":50}`)

	if err := h.CreateDrug(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var d Drug
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.Status != StatusEnabled || d.Stock != 50 || d.Price.String() != "12.5" {
		t.Errorf("unexpected drug %+v", d)
	}
}

func TestHandler_CreateDrug_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonContext(e, `{"name":"Amoxicillin","stock":-1}`)
	expectHTTPStatus(t, h.CreateDrug(c), http.StatusBadRequest)
}

func TestHandler_CreateDrug_Conflict(t *testing.T) {
	h, e := newTestHandler()
	seedDrug(t, h.svc, "Ibuprofen", 10)
	c, _ := jsonContext(e, `{"name":"ibuprofen","unit":"box"}`)
	expectHTTPStatus(t, h.CreateDrug(c), http.StatusConflict)
}

func TestHandler_GetDrug_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPStatus(t, h.GetDrug(c), http.StatusNotFound)
}

func TestHandler_ListDrugs(t *testing.T) {
	h, e := newTestHandler()
	seedDrug(t, h.svc, "Amoxicillin", 50)
	seedDrug(t, h.svc, "Ibuprofen", 100)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?name=amox", nil), rec)
	if err := h.ListDrugs(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response[*Drug]
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].Name != "Amoxicillin" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_AdjustStock(t *testing.T) {
	h, e := newTestHandler()
	d := seedDrug(t, h.svc, "Ibuprofen", 3)

	c, rec := jsonContext(e, `{"delta":-2}`)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.AdjustStock(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Drug
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Stock != 1 {
		t.Errorf("expected stock 1, got %d", got.Stock)
	}

	c, _ = jsonContext(e, `{"delta":-2}`)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	expectHTTPStatus(t, h.AdjustStock(c), http.StatusConflict)
}
