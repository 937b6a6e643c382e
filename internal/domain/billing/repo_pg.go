package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const paymentCols = `id, registration_id, patient_name, amount, payment_method, status,
	create_time, refund_time, refund_reason, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.RegistrationID, &p.PatientName, &p.Amount, &p.PaymentMethod, &p.Status,
		&p.CreateTime, &p.RefundTime, &p.RefundReason, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment (id, registration_id, patient_name, amount, payment_method, status, create_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING updated_at`,
		p.ID, p.RegistrationID, p.PatientName, p.Amount, p.PaymentMethod, p.Status, p.CreateTime,
	).Scan(&p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("registration %s already has a payment: %w", p.RegistrationID, apperr.ErrDuplicatePayment)
	}
	return db.MapError(err, "payment for registration "+p.RegistrationID)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "payment "+id.String())
	}
	return p, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payment WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.MapError(err, "payment "+id.String())
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Payment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE payment SET status = $2, refund_time = $3, refund_reason = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Status, p.RefundTime, p.RefundReason).Scan(&p.UpdatedAt)
	return db.MapError(err, "payment "+p.ID.String())
}

func (r *repoPG) FindOpenByRegistration(ctx context.Context, registrationID string) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+paymentCols+` FROM payment
		WHERE registration_id = $1 AND status <> 'refunded'
		LIMIT 1`, registrationID))
	if err != nil {
		return nil, db.MapError(err, "open payment for registration "+registrationID)
	}
	return p, nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["registration_id"]; ok {
		where += fmt.Sprintf(` AND registration_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["payment_method"]; ok {
		where += fmt.Sprintf(` AND payment_method = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["patient_name"]; ok {
		where += fmt.Sprintf(` AND patient_name ILIKE $%d`, idx)
		args = append(args, "%"+p+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + paymentCols + ` FROM payment` + where +
		fmt.Sprintf(` ORDER BY create_time DESC, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
