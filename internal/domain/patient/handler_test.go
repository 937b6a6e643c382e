package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/outpatient/ledger/internal/domain/registration"
	"github.com/outpatient/ledger/internal/platform/auth"
	"github.com/outpatient/ledger/internal/platform/validate"
	"github.com/outpatient/ledger/pkg/pagination"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(env.svc), env, e
}

func as(req *http.Request, userID string, roles ...string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
	return req.WithContext(ctx)
}

func asDoctor(req *http.Request, doctorID string) *http.Request {
	req = as(req, "doc-account", auth.RoleDoctor)
	return req.WithContext(context.WithValue(req.Context(), auth.DoctorIDKey, doctorID))
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

func TestHandler_Profile_OwnRecord(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"name":"Zhang San","gender":"male","birth_date":"1990-05-15","allergies":"penicillin"}`
	req := httptest.NewRequest(http.MethodPut, "/?patient_id=someone-else", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.UpdateProfile(e.NewContext(as(req, "p1", auth.RolePatient), rec)); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	var saved Profile
	json.Unmarshal(rec.Body.Bytes(), &saved)
	if saved.PatientID != "p1" || saved.Allergies != "penicillin" {
		t.Errorf("unexpected saved profile %+v", saved)
	}

	rec = httptest.NewRecorder()
	req = as(httptest.NewRequest(http.MethodGet, "/", nil), "p1", auth.RolePatient)
	if err := h.GetProfile(e.NewContext(req, rec)); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	var got Profile
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Name != "Zhang San" || got.BirthDate == nil || *got.BirthDate != "1990-05-15" {
		t.Errorf("unexpected profile %+v", got)
	}
}

func TestHandler_UpdateProfile_BadRequest(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"gender":"robot"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(as(req, "p1", auth.RolePatient), httptest.NewRecorder())
	expectHTTPStatus(t, h.UpdateProfile(c), http.StatusBadRequest)
}

func TestHandler_GetProfile_AdminNamesPatient(t *testing.T) {
	h, _, e := newTestHandler()

	c := e.NewContext(as(httptest.NewRequest(http.MethodGet, "/", nil), "admin-1", auth.RoleAdmin), httptest.NewRecorder())
	expectHTTPStatus(t, h.GetProfile(c), http.StatusBadRequest)

	rec := httptest.NewRecorder()
	req := as(httptest.NewRequest(http.MethodGet, "/?patient_id=p9", nil), "admin-1", auth.RoleAdmin)
	if err := h.GetProfile(e.NewContext(req, rec)); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	var got Profile
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.PatientID != "p9" {
		t.Errorf("expected profile of p9, got %q", got.PatientID)
	}
}

func TestHandler_History_OnlyOwnVisits(t *testing.T) {
	h, env, e := newTestHandler()
	doctor := uuid.New()
	env.register("p1", doctor, "2025-05-20", registration.StatusConfirmed, testNow)
	env.register("p2", doctor, "2025-05-20", registration.StatusConfirmed, testNow)

	rec := httptest.NewRecorder()
	req := as(httptest.NewRequest(http.MethodGet, "/?patient_id=p2", nil), "p1", auth.RolePatient)
	if err := h.History(e.NewContext(req, rec)); err != nil {
		t.Fatalf("History: %v", err)
	}
	var resp pagination.Response[*Visit]
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].RegistrationID != env.regs.items[0].ID {
		t.Errorf("unexpected history %+v", resp)
	}
}

func TestHandler_Queue(t *testing.T) {
	h, env, e := newTestHandler()
	doctor := uuid.New()
	env.register("p1", doctor, "2025-05-20", registration.StatusPending, testNow)
	env.register("p2", uuid.New(), "2025-05-20", registration.StatusPending, testNow)

	rec := httptest.NewRecorder()
	req := asDoctor(httptest.NewRequest(http.MethodGet, "/?doctor_id="+uuid.NewString(), nil), doctor.String())
	if err := h.Queue(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	var resp queueResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].PatientID != "p1" {
		t.Errorf("doctor must see only their own queue, got %+v", resp)
	}
}

func TestHandler_Queue_Unbound(t *testing.T) {
	h, _, e := newTestHandler()

	c := e.NewContext(as(httptest.NewRequest(http.MethodGet, "/", nil), "doc-account", auth.RoleDoctor), httptest.NewRecorder())
	expectHTTPStatus(t, h.Queue(c), http.StatusForbidden)

	c = e.NewContext(as(httptest.NewRequest(http.MethodGet, "/", nil), "admin-1", auth.RoleAdmin), httptest.NewRecorder())
	expectHTTPStatus(t, h.Queue(c), http.StatusBadRequest)

	c = e.NewContext(as(httptest.NewRequest(http.MethodGet, "/?doctor_id=nope", nil), "admin-1", auth.RoleAdmin), httptest.NewRecorder())
	expectHTTPStatus(t, h.Queue(c), http.StatusBadRequest)
}
