package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outpatient/ledger/internal/platform/db"
)

// =========== Department Repository ===========

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

func (r *departmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const deptCols = `id, name, description, status, created_at, updated_at`

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *departmentRepoPG) Create(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO department (id, name, description, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Description, d.Status).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.MapError(err, "department "+d.Name)
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	d, err := scanDepartment(r.conn(ctx).QueryRow(ctx, `SELECT `+deptCols+` FROM department WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "department "+id.String())
	}
	return d, nil
}

func (r *departmentRepoPG) Update(ctx context.Context, d *Department) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE department SET name = $2, description = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Name, d.Description, d.Status).Scan(&d.UpdatedAt)
	return db.MapError(err, "department "+d.ID.String())
}

func (r *departmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM department WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "department "+id.String())
	}
	return nil
}

func (r *departmentRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Department, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	if status != "" {
		where += ` AND status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM department`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + deptCols + ` FROM department` + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `id, department_id, name, title, specialty, max_appointments, fee, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.DepartmentID, &d.Name, &d.Title, &d.Specialty,
		&d.MaxAppointments, &d.Fee, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, department_id, name, title, specialty, max_appointments, fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		d.ID, d.DepartmentID, d.Name, d.Title, d.Specialty, d.MaxAppointments, d.Fee,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.MapError(err, "doctor "+d.Name)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "doctor "+id.String())
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor SET department_id = $2, name = $3, title = $4, specialty = $5,
			max_appointments = $6, fee = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.DepartmentID, d.Name, d.Title, d.Specialty, d.MaxAppointments, d.Fee,
	).Scan(&d.UpdatedAt)
	return db.MapError(err, "doctor "+d.ID.String())
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "doctor "+id.String())
	}
	return nil
}

func (r *doctorRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Doctor, error) {
	query := `SELECT ` + doctorCols + ` FROM doctor`
	var args []interface{}
	if len(ids) > 0 {
		query += ` WHERE id = ANY($1)`
		args = append(args, ids)
	}
	query += ` ORDER BY name, id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["department_id"]; ok {
		where += fmt.Sprintf(` AND department_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["name"]; ok {
		where += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+p+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + doctorCols + ` FROM doctor` + where +
		fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *doctorRepoPG) CountByDepartment(ctx context.Context, departmentID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor WHERE department_id = $1`, departmentID).Scan(&n)
	return n, err
}
