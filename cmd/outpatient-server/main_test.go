package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/config"
	"github.com/outpatient/ledger/internal/domain/account"
	"github.com/outpatient/ledger/internal/domain/directory"
	"github.com/outpatient/ledger/internal/domain/registration"
	"github.com/outpatient/ledger/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// resolveSigningKey
// ---------------------------------------------------------------------------

func TestResolveSigningKey_FromHex(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)
	key, generated, err := resolveSigningKey(hexKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated {
		t.Error("expected generated=false for a configured key")
	}
	want, _ := hex.DecodeString(hexKey)
	if string(key) != string(want) {
		t.Errorf("expected decoded hex key")
	}
}

func TestResolveSigningKey_Passphrase(t *testing.T) {
	phrase := "correct horse battery staple for the ledger"
	key, generated, err := resolveSigningKey(phrase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated || string(key) != phrase {
		t.Errorf("expected passphrase to be used verbatim, got %q (generated=%v)", key, generated)
	}
}

func TestResolveSigningKey_RandomGeneration(t *testing.T) {
	key1, generated, err := resolveSigningKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated {
		t.Error("expected generated=true when no key is configured")
	}
	if len(key1) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(key1))
	}
	key2, _, _ := resolveSigningKey("")
	if string(key1) == string(key2) {
		t.Error("expected two generated keys to differ")
	}
}

// ---------------------------------------------------------------------------
// server wiring on the memory driver
// ---------------------------------------------------------------------------

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		AuthMode:             config.AuthModeJWT,
		StorageDriver:        config.StorageMemory,
		AuthIssuer:           "outpatient-ledger-test",
		AuthSigningKey:       strings.Repeat("s", 32),
		AuthTokenTTL:         time.Hour,
		CORSOrigins:          []string{"http://localhost:3000"},
		RateLimitRPS:         1000,
		RateLimitBurst:       1000,
		RequestTimeout:       5 * time.Second,
		BodyLimit:            "1M",
		RequireConfirmation:  true,
		AppointmentRangeDays: 7,
		Timezone:             "UTC",
	}
}

func newTestApp(t *testing.T) (*app, *echo.Echo) {
	t.Helper()
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	a, err := buildApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a, a.newServer()
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo, username, password string) account.LoginResult {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/v1/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}
	var res account.LoginResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return res
}

func TestServer_HealthIsPublic(t *testing.T) {
	_, e := newTestApp(t)

	if rec := do(e, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/health: expected 200, got %d", rec.Code)
	}
	rec := do(e, http.MethodGet, "/health/db", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("/health/db: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"memory"`) {
		t.Errorf("expected memory driver in health body, got %s", rec.Body.String())
	}
}

func TestServer_RequiresToken(t *testing.T) {
	_, e := newTestApp(t)

	if rec := do(e, http.MethodGet, "/api/v1/schedules", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/schedules", "not-a-jwt", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a bad token, got %d", rec.Code)
	}
}

func TestServer_LoginAndBook(t *testing.T) {
	a, e := newTestApp(t)
	ctx := context.Background()

	if _, err := a.accounts.CreateAccount(ctx, account.NewAccount{
		Username: "admin", Password: "admin-pass-1", Role: auth.RoleAdmin, DisplayName: "Front Desk",
	}); err != nil {
		t.Fatalf("CreateAccount admin: %v", err)
	}
	if _, err := a.accounts.CreateAccount(ctx, account.NewAccount{
		Username: "lilei", Password: "patient-pass-1", Role: auth.RolePatient, DisplayName: "Li Lei",
	}); err != nil {
		t.Fatalf("CreateAccount patient: %v", err)
	}

	dept := &directory.Department{Name: "Cardiology"}
	if err := a.directory.CreateDepartment(ctx, dept); err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	doc := &directory.Doctor{DepartmentID: dept.ID, Name: "Dr. Zhang", MaxAppointments: 30, Fee: decimal.NewFromInt(80)}
	if err := a.directory.CreateDoctor(ctx, doc); err != nil {
		t.Fatalf("CreateDoctor: %v", err)
	}
	today := time.Now().UTC().Format("2006-01-02")
	slots, err := a.scheduling.GenerateSlots(ctx, today, nil)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}

	admin := login(t, e, "admin", "admin-pass-1")
	if admin.Home != "/admin" {
		t.Errorf("expected admin home, got %s", admin.Home)
	}
	patient := login(t, e, "lilei", "patient-pass-1")
	if patient.Home != "/patient" {
		t.Errorf("expected patient home, got %s", patient.Home)
	}

	rec := do(e, http.MethodGet, "/api/v1/schedules?date="+today, patient.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list schedules: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/api/v1/registrations", patient.Token, `{"schedule_id":"`+slots[0].ID.String()+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var reg registration.Registration
	json.Unmarshal(rec.Body.Bytes(), &reg)
	if reg.PatientName != "Li Lei" || reg.Status != registration.StatusPending {
		t.Errorf("unexpected registration %+v", reg)
	}
	if !strings.HasPrefix(reg.ID, "GH") {
		t.Errorf("expected GH registration number, got %s", reg.ID)
	}

	// Patients cannot confirm.
	if rec := do(e, http.MethodPut, "/api/v1/registrations/"+reg.ID+"/confirm", patient.Token, ""); rec.Code != http.StatusForbidden {
		t.Errorf("patient confirm: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPut, "/api/v1/registrations/"+reg.ID+"/confirm", admin.Token, ""); rec.Code != http.StatusOK {
		t.Errorf("admin confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	sched, err := a.scheduling.GetSchedule(ctx, slots[0].ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if sched.Booked != 1 {
		t.Errorf("expected booked=1, got %d", sched.Booked)
	}
}

func TestServer_DrugsAndProfile(t *testing.T) {
	a, e := newTestApp(t)
	ctx := context.Background()

	for _, acct := range []account.NewAccount{
		{Username: "admin", Password: "admin-pass-1", Role: auth.RoleAdmin, DisplayName: "Front Desk"},
		{Username: "lilei", Password: "patient-pass-1", Role: auth.RolePatient, DisplayName: "Li Lei"},
	} {
		if _, err := a.accounts.CreateAccount(ctx, acct); err != nil {
			t.Fatalf("CreateAccount %s: %v", acct.Username, err)
		}
	}
	admin := login(t, e, "admin", "admin-pass-1")
	patient := login(t, e, "lilei", "patient-pass-1")

	drug := `{"name":"Amoxicillin","price":"12.5","unit":"box","stock":50}`
	if rec := do(e, http.MethodPost, "/api/v1/drugs", patient.Token, drug); rec.Code != http.StatusForbidden {
		t.Errorf("patient create drug: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/v1/drugs", admin.Token, drug); rec.Code != http.StatusCreated {
		t.Fatalf("admin create drug: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := do(e, http.MethodGet, "/api/v1/drugs", patient.Token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Amoxicillin") {
		t.Errorf("list drugs: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPut, "/api/v1/patients/profile", patient.Token, `{"allergies":"penicillin","birth_date":"1990-05-15"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodGet, "/api/v1/patients/profile", patient.Token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "penicillin") {
		t.Errorf("get profile: got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/api/v1/patients/history", patient.Token, ""); rec.Code != http.StatusOK {
		t.Errorf("history: expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/patients/queue", patient.Token, ""); rec.Code != http.StatusForbidden {
		t.Errorf("patient queue: expected 403, got %d", rec.Code)
	}
}
