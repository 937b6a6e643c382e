package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const pingTimeout = 5 * time.Second

// StorageHealth is the body of GET /health/db.
type StorageHealth struct {
	Status string    `json:"status"`
	Driver string    `json:"driver"`
	Error  string    `json:"error,omitempty"`
	Pool   *PoolInfo `json:"pool,omitempty"`
}

type PoolInfo struct {
	Total    int32  `json:"total_conns"`
	Idle     int32  `json:"idle_conns"`
	Acquired int32  `json:"acquired_conns"`
	Max      int32  `json:"max_conns"`
	Acquires int64  `json:"acquire_count"`
	WaitTime string `json:"acquire_duration"`
}

func poolInfo(pool *pgxpool.Pool) *PoolInfo {
	s := pool.Stat()
	return &PoolInfo{
		Total:    s.TotalConns(),
		Idle:     s.IdleConns(),
		Acquired: s.AcquiredConns(),
		Max:      s.MaxConns(),
		Acquires: s.AcquireCount(),
		WaitTime: s.AcquireDuration().String(),
	}
}

// CheckStorage pings the pool. A nil pool means the ledger runs on the
// in-memory driver, which has nothing to ping.
func CheckStorage(ctx context.Context, pool *pgxpool.Pool) StorageHealth {
	if pool == nil {
		return StorageHealth{Status: "healthy", Driver: "memory"}
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	h := StorageHealth{Status: "healthy", Driver: "postgres", Pool: poolInfo(pool)}
	if err := pool.Ping(ctx); err != nil {
		h.Status, h.Error = "unhealthy", err.Error()
	}
	return h
}

func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := CheckStorage(c.Request().Context(), pool)
		status := http.StatusOK
		if h.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, h)
	}
}
