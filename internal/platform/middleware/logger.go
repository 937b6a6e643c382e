package middleware

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// requestLogger scopes logger to the request id and caller set by the
// RequestID and auth middleware.
func requestLogger(logger zerolog.Logger, c echo.Context) zerolog.Logger {
	rid, _ := c.Get("request_id").(string)
	uid, _ := c.Get("user_id").(string)
	return logger.With().
		Str("request_id", rid).
		Str("user_id", uid).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Logger()
}

// statusOf reports the status a client will see for err, falling back to
// what the handler already wrote.
func statusOf(c echo.Context, err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}

// Logger writes one line per request. Client errors log at warn, server
// errors at error with the cause attached.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := statusOf(c, err)
			l := requestLogger(logger, c)
			var evt *zerolog.Event
			switch {
			case status >= 500:
				evt = l.Error().Err(err)
			case status >= 400 || err != nil:
				evt = l.Warn().Err(err)
			default:
				evt = l.Info()
			}
			evt.Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return err
		}
	}
}
