package prescription

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

const rxCols = `id, registration_id, patient_id, doctor_id, status, symptoms, diagnosis, remark, prescribed_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.RegistrationID, &p.PatientID, &p.DoctorID, &p.Status,
		&p.Symptoms, &p.Diagnosis, &p.Remark, &p.PrescribedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, registration_id, patient_id, doctor_id, status, symptoms, diagnosis, remark, prescribed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING updated_at`,
		p.ID, p.RegistrationID, p.PatientID, p.DoctorID, p.Status, p.Symptoms, p.Diagnosis, p.Remark, p.PrescribedAt,
	).Scan(&p.UpdatedAt)
	return db.MapError(err, "prescription for registration "+p.RegistrationID)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "prescription "+id.String())
	}
	return p, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `
		UPDATE prescription SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+rxCols, id, status))
	if err != nil {
		return nil, db.MapError(err, "prescription "+id.String())
	}
	return p, nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	for _, col := range []string{"registration_id", "patient_id", "doctor_id", "status"} {
		if p, ok := params[col]; ok {
			where += fmt.Sprintf(` AND %s = $%d`, col, idx)
			args = append(args, p)
			idx++
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + rxCols + ` FROM prescription` + where +
		fmt.Sprintf(` ORDER BY prescribed_at DESC, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
