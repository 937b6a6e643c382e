package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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

func TestHandler_CreateSchedule(t *testing.T) {
	h, env, e := newTestHandler(t)
	doc := env.doctor(t, "Dr. Chen", 30, 50)

	body := `{"doctor_id":"` + doc.ID.String() + `","date":"2024-03-01","time_slot":"morning","max_patients":10,"amount":"50","booked":9}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.CreateSchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var s Schedule
	json.Unmarshal(rec.Body.Bytes(), &s)
	if s.Booked != 0 {
		t.Errorf("booked must not be settable, got %d", s.Booked)
	}
	if s.DepartmentID != env.dept.ID {
		t.Errorf("expected department %s, got %s", env.dept.ID, s.DepartmentID)
	}
}

func TestHandler_CreateSchedule_Duplicate(t *testing.T) {
	h, env, e := newTestHandler(t)
	doc := env.doctor(t, "Dr. Chen", 30, 50)
	env.schedule(t, doc.ID, 5)

	body := `{"doctor_id":"` + doc.ID.String() + `","date":"2024-03-01","time_slot":"morning","max_patients":10}`
	c := e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder())

	expectHTTPStatus(t, h.CreateSchedule(c), http.StatusConflict)
}

func TestHandler_CreateSchedule_Invalid(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(jsonRequest(http.MethodPost, `{"date":"2024-03-01"}`), httptest.NewRecorder())
	expectHTTPStatus(t, h.CreateSchedule(c), http.StatusBadRequest)
}

func TestHandler_GenerateSlots(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.doctor(t, "Dr. Gen", 30, 50)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"date":"2024-03-05"}`), rec)
	if err := h.GenerateSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Created int `json:"created"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Created != 3 {
		t.Errorf("expected 3 created, got %d", resp.Created)
	}
}

func TestHandler_UpdateSchedule_BelowBooked(t *testing.T) {
	h, env, e := newTestHandler(t)
	doc := env.doctor(t, "Dr. Up", 30, 50)
	s := env.schedule(t, doc.ID, 5)
	env.svc.ReserveSlot(context.Background(), s.ID)
	env.svc.ReserveSlot(context.Background(), s.ID)

	c := e.NewContext(jsonRequest(http.MethodPut, `{"max_patients":1}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(s.ID.String())

	expectHTTPStatus(t, h.UpdateSchedule(c), http.StatusConflict)
}

func TestHandler_DeleteSchedule(t *testing.T) {
	h, env, e := newTestHandler(t)
	doc := env.doctor(t, "Dr. Del", 30, 50)
	s := env.schedule(t, doc.ID, 5)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(s.ID.String())

	if err := h.DeleteSchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_GetSchedule_NotFound(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	expectHTTPStatus(t, h.GetSchedule(c), http.StatusNotFound)
}

func TestHandler_ListSchedules(t *testing.T) {
	h, env, e := newTestHandler(t)
	doc := env.doctor(t, "Dr. List", 30, 50)
	env.schedule(t, doc.ID, 5)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?doctor_id="+doc.ID.String()+"&date=2024-03-01", nil), rec)
	if err := h.ListSchedules(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 schedule, got %d", resp.Total)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=bad", nil), httptest.NewRecorder())
	expectHTTPStatus(t, h.ListSchedules(c), http.StatusBadRequest)
}
