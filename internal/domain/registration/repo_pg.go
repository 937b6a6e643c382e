package registration

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

const regCols = `id, schedule_id, patient_id, patient_name, department_id, doctor_id,
	schedule_date::text, time_slot, status, create_time, confirm_time, cancel_time,
	has_prescription, updated_at`

func scanRegistration(row pgx.Row) (*Registration, error) {
	var g Registration
	err := row.Scan(&g.ID, &g.ScheduleID, &g.PatientID, &g.PatientName, &g.DepartmentID, &g.DoctorID,
		&g.ScheduleDate, &g.TimeSlot, &g.Status, &g.CreateTime, &g.ConfirmTime, &g.CancelTime,
		&g.HasPrescription, &g.UpdatedAt)
	return &g, err
}

func (r *repoPG) Create(ctx context.Context, g *Registration) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO registration (id, schedule_id, patient_id, patient_name, department_id, doctor_id,
			schedule_date, time_slot, status, create_time, confirm_time, has_prescription)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11, $12)
		RETURNING updated_at`,
		g.ID, g.ScheduleID, g.PatientID, g.PatientName, g.DepartmentID, g.DoctorID,
		g.ScheduleDate, g.TimeSlot, g.Status, g.CreateTime, g.ConfirmTime, g.HasPrescription,
	).Scan(&g.UpdatedAt)
	return db.MapError(err, "registration "+g.ID)
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Registration, error) {
	g, err := scanRegistration(r.conn(ctx).QueryRow(ctx, `SELECT `+regCols+` FROM registration WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "registration "+id)
	}
	return g, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id string) (*Registration, error) {
	g, err := scanRegistration(r.conn(ctx).QueryRow(ctx, `SELECT `+regCols+` FROM registration WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.MapError(err, "registration "+id)
	}
	return g, nil
}

func (r *repoPG) Update(ctx context.Context, g *Registration) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE registration
		SET status = $2, confirm_time = $3, cancel_time = $4, has_prescription = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		g.ID, g.Status, g.ConfirmTime, g.CancelTime, g.HasPrescription).Scan(&g.UpdatedAt)
	return db.MapError(err, "registration "+g.ID)
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Registration, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	for _, f := range []struct{ param, clause string }{
		{"patient_id", "patient_id = $%d"},
		{"doctor_id", "doctor_id = $%d"},
		{"department_id", "department_id = $%d"},
		{"schedule_id", "schedule_id = $%d"},
		{"status", "status = $%d"},
		{"date", "schedule_date = $%d::date"},
	} {
		if p, ok := params[f.param]; ok {
			where += ` AND ` + fmt.Sprintf(f.clause, idx)
			args = append(args, p)
			idx++
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM registration`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + regCols + ` FROM registration` + where +
		fmt.Sprintf(` ORDER BY create_time DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Registration
	for rows.Next() {
		g, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountActiveBySchedule(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM registration
		WHERE schedule_id = $1 AND status IN ('pending', 'confirmed')`, scheduleID).Scan(&n)
	return n, err
}
