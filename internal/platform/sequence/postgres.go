package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outpatient/ledger/internal/platform/db"
)

// PgCounter keeps daily counters in the registration_counter table. It joins
// the caller's transaction, so a rolled back booking does not consume a number.
type PgCounter struct {
	pool *pgxpool.Pool
}

func NewPgCounter(pool *pgxpool.Pool) *PgCounter {
	return &PgCounter{pool: pool}
}

func (c *PgCounter) Next(ctx context.Context, day string) (int64, error) {
	var v int64
	err := db.Conn(ctx, c.pool).QueryRow(ctx, `
		INSERT INTO registration_counter (day, value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = registration_counter.value + 1
		RETURNING value`, day).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("increment registration counter %s: %w", day, err)
	}
	return v, nil
}
