package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/outpatient/ledger/internal/platform/auth"
)

// AuditEntry records one state-changing call against the ledger API.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	ResourceID string
	Action     string // create, update, delete
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every mutating request under /api/v1 with the caller identity
// and the response status. Reads are not audited. Extra recorders receive
// the same entry after it is logged.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			action := actionFromMethod(req.Method)
			if action == "" || !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := statusOf(c, err)

			ctx := req.Context()
			resource, id := resourceFromPath(req.URL.Path)
			rid, _ := c.Get("request_id").(string)
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Resource:   resource,
				ResourceID: id,
				Action:     action,
				IPAddress:  c.RealIP(),
				Path:       req.URL.Path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				RequestID:  rid,
				StatusCode: status,
			}

			logger.Info().
				Str("audit", "ledger").
				Str("user_id", entry.UserID).
				Strs("roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Str("request_id", entry.RequestID).
				Msg("audit")

			for _, r := range recorders {
				if rerr := r.RecordAccess(entry); rerr != nil {
					logger.Warn().Err(rerr).Msg("audit recorder failed")
				}
			}

			return err
		}
	}
}

func actionFromMethod(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}

// resourceFromPath splits "/api/v1/payments/abc/refund" into ("payments", "abc").
func resourceFromPath(path string) (string, string) {
	rest := strings.TrimPrefix(path, "/api/v1/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	resource := parts[0]
	id := ""
	if len(parts) > 1 {
		id = parts[1]
	}
	return resource, id
}
