package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	UserNameKey  contextKey = "user_name"
	DoctorIDKey  contextKey = "doctor_id"
)

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

type Claims struct {
	jwt.RegisteredClaims
	Roles    []string `json:"roles"`
	Name     string   `json:"name,omitempty"`
	DoctorID string   `json:"doctor_id,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	Skipper    func(c echo.Context) bool
}

// JWTMiddleware requires a valid HS256 bearer token on every request the
// skipper does not exempt.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return authenticate(cfg, nil)
}

// developer is the identity DevAuthMiddleware assumes for anonymous calls.
var developer = &Claims{
	RegisteredClaims: jwt.RegisteredClaims{Subject: "dev-user"},
	Roles:            []string{RoleAdmin},
	Name:             "Developer",
}

// DevAuthMiddleware runs requests without an Authorization header as an
// admin. Tokens that are present are still validated.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return authenticate(cfg, developer)
}

func authenticate(cfg JWTConfig, anonymous *Claims) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" && anonymous != nil {
				setIdentity(c, anonymous)
				return next(c)
			}
			claims, err := parseBearer(header, cfg)
			if err != nil {
				return err
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}

func parseBearer(header string, cfg JWTConfig) (*Claims, error) {
	if header == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, raw, ok := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

func setIdentity(c echo.Context, claims *Claims) {
	c.Set("user_id", claims.Subject)

	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
	ctx = context.WithValue(ctx, UserRolesKey, claims.Roles)
	ctx = context.WithValue(ctx, UserNameKey, claims.Name)
	ctx = context.WithValue(ctx, DoctorIDKey, claims.DoctorID)
	c.SetRequest(c.Request().WithContext(ctx))
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func UserNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(UserNameKey).(string)
	return name
}

func DoctorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(DoctorIDKey).(string)
	return id
}

// HasRole reports whether the caller holds role. Admins hold every role.
func HasRole(ctx context.Context, role string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == role || has == RoleAdmin {
			return true
		}
	}
	return false
}
