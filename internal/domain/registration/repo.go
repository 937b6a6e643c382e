package registration

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	// GetForUpdate reads the registration and locks it until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Registration, error)
	// Update writes the lifecycle fields: status, confirm_time, cancel_time
	// and has_prescription.
	Update(ctx context.Context, r *Registration) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Registration, int, error)
	CountActiveBySchedule(ctx context.Context, scheduleID uuid.UUID) (int, error)
}
