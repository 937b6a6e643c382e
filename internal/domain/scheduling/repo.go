package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	// Create inserts s. A schedule for the same doctor, date and time slot
	// yields apperr.ErrConflict.
	Create(ctx context.Context, s *Schedule) error
	// CreateIfAbsent inserts s unless the doctor already has that slot and
	// reports whether a row was written.
	CreateIfAbsent(ctx context.Context, s *Schedule) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	// Update writes MaxPatients, Amount and Status. Booked is owned by
	// Reserve and Release and is never overwritten.
	Update(ctx context.Context, s *Schedule) error
	// Delete removes an unbooked schedule.
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Schedule, int, error)
	// Reserve atomically takes one unit of capacity.
	Reserve(ctx context.Context, id uuid.UUID) (*Schedule, error)
	// Release returns one unit of capacity, never going below zero.
	Release(ctx context.Context, id uuid.UUID) (*Schedule, error)
	CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
}
