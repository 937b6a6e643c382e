package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts a. Usernames are unique; a clash yields apperr.ErrConflict.
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
}
