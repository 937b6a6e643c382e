package billing

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts p. A second non-refunded payment for the same
	// registration yields apperr.ErrDuplicatePayment.
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	// Update writes status, refund_time and refund_reason.
	Update(ctx context.Context, p *Payment) error
	// FindOpenByRegistration returns the registration's non-refunded
	// payment, or apperr.ErrNotFound.
	FindOpenByRegistration(ctx context.Context, registrationID string) (*Payment, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error)
}
