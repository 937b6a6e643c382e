package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outpatient/ledger/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Get(ctx context.Context) (*Settings, error) {
	var s Settings
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT require_confirmation, appointment_range_days, updated_at
		FROM settings WHERE id = 1`).Scan(&s.RequireConfirmation, &s.AppointmentRangeDays, &s.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err, "settings")
	}
	return &s, nil
}

func (r *repoPG) Save(ctx context.Context, s *Settings) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO settings (id, require_confirmation, appointment_range_days)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET require_confirmation = EXCLUDED.require_confirmation,
		    appointment_range_days = EXCLUDED.appointment_range_days,
		    updated_at = NOW()
		RETURNING updated_at`,
		s.RequireConfirmation, s.AppointmentRangeDays).Scan(&s.UpdatedAt)
	return db.MapError(err, "settings")
}
