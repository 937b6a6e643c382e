package directory

import (
	"context"

	"github.com/google/uuid"
)

type DepartmentRepository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	Update(ctx context.Context, d *Department) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status string, limit, offset int) ([]*Department, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByIDs returns the doctors with the given ids, or every doctor when
	// ids is empty, ordered by name.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Doctor, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error)
	CountByDepartment(ctx context.Context, departmentID uuid.UUID) (int, error)
}
