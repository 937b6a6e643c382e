package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error)
}
