package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outpatient/ledger/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const accountCols = `id, username, password_hash, role, display_name, doctor_id, department_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.DisplayName,
		&a.DoctorID, &a.DepartmentID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO account (id, username, password_hash, role, display_name, doctor_id, department_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.Username, a.PasswordHash, a.Role, a.DisplayName, a.DoctorID, a.DepartmentID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.MapError(err, "account "+a.Username)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "account "+id.String())
	}
	return a, nil
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*Account, error) {
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE lower(username) = lower($1)`, username))
	if err != nil {
		return nil, db.MapError(err, "account "+username)
	}
	return a, nil
}
