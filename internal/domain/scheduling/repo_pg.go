package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepoPG{pool: pool}
}

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const scheduleCols = `id, department_id, doctor_id, schedule_date::text, time_slot, max_patients, booked, amount, status, created_at, updated_at`

const scheduleOrder = ` ORDER BY schedule_date,
	CASE time_slot WHEN 'morning' THEN 0 WHEN 'afternoon' THEN 1 WHEN 'evening' THEN 2 ELSE 3 END,
	doctor_id, id`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.DepartmentID, &s.DoctorID, &s.Date, &s.TimeSlot,
		&s.MaxPatients, &s.Booked, &s.Amount, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule (id, department_id, doctor_id, schedule_date, time_slot, max_patients, booked, amount, status)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		s.ID, s.DepartmentID, s.DoctorID, s.Date, s.TimeSlot, s.MaxPatients, s.Booked, s.Amount, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return db.MapError(err, fmt.Sprintf("schedule %s %s for doctor %s", s.Date, s.TimeSlot, s.DoctorID))
}

func (r *scheduleRepoPG) CreateIfAbsent(ctx context.Context, s *Schedule) (bool, error) {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule (id, department_id, doctor_id, schedule_date, time_slot, max_patients, booked, amount, status)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
		ON CONFLICT (doctor_id, schedule_date, time_slot) DO NOTHING
		RETURNING created_at, updated_at`,
		s.ID, s.DepartmentID, s.DoctorID, s.Date, s.TimeSlot, s.MaxPatients, s.Booked, s.Amount, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, db.MapError(err, "schedule "+s.Date)
	}
	return true, nil
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+scheduleCols+` FROM schedule WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "schedule "+id.String())
	}
	return s, nil
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *Schedule) error {
	updated, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedule SET max_patients = $2, amount = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+scheduleCols,
		s.ID, s.MaxPatients, s.Amount, s.Status))
	if err != nil {
		if db.IsCheckViolation(err) {
			return fmt.Errorf("schedule %s: max_patients below booked: %w", s.ID, apperr.ErrInvalidState)
		}
		return db.MapError(err, "schedule "+s.ID.String())
	}
	*s = *updated
	return nil
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule WHERE id = $1 AND booked = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("schedule %s still has active registrations: %w", id, apperr.ErrInvalidState)
}

func (r *scheduleRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Schedule, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["doctor_id"]; ok {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["department_id"]; ok {
		where += fmt.Sprintf(` AND department_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["date"]; ok {
		where += fmt.Sprintf(` AND schedule_date = $%d::date`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM schedule`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + scheduleCols + ` FROM schedule` + where + scheduleOrder +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// Reserve relies on a single conditional UPDATE so concurrent bookings on
// the same row serialise inside Postgres. When nothing matched, a follow-up
// read tells a missing schedule apart from a full or disabled one.
func (r *scheduleRepoPG) Reserve(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedule SET booked = booked + 1, updated_at = NOW()
		WHERE id = $1 AND booked < max_patients AND status = 'enabled'
		RETURNING `+scheduleCols, id))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusEnabled {
		return nil, fmt.Errorf("schedule %s is disabled: %w", id, apperr.ErrCapacityExceeded)
	}
	return nil, fmt.Errorf("schedule %s is full (%d/%d): %w", id, current.Booked, current.MaxPatients, apperr.ErrCapacityExceeded)
}

func (r *scheduleRepoPG) Release(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedule SET booked = GREATEST(booked - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING `+scheduleCols, id))
	if err != nil {
		return nil, db.MapError(err, "schedule "+id.String())
	}
	return s, nil
}

func (r *scheduleRepoPG) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM schedule WHERE doctor_id = $1`, doctorID).Scan(&n)
	return n, err
}
