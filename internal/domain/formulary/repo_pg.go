package formulary

import (
	"context"
	"fmt"

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

const drugCols = `id, name, price, unit, stock, status, created_at, updated_at`

func scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.ID, &d.Name, &d.Price, &d.Unit, &d.Stock, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Drug) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO drug (id, name, price, unit, stock, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Price, d.Unit, d.Stock, d.Status).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.MapError(err, "drug "+d.Name)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Drug, error) {
	d, err := scanDrug(r.conn(ctx).QueryRow(ctx, `SELECT `+drugCols+` FROM drug WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "drug "+id.String())
	}
	return d, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Drug, error) {
	d, err := scanDrug(r.conn(ctx).QueryRow(ctx, `SELECT `+drugCols+` FROM drug WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.MapError(err, "drug "+id.String())
	}
	return d, nil
}

func (r *repoPG) Update(ctx context.Context, d *Drug) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE drug SET name = $2, price = $3, unit = $4, stock = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Price, d.Unit, d.Stock, d.Status).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.MapError(err, "drug "+d.ID.String())
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM drug WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "drug "+id.String())
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Drug, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["name"]; ok {
		where += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["status"]; ok {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM drug`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + drugCols + ` FROM drug` + where +
		fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
