package settings

import "context"

type Repository interface {
	// Get returns the stored settings or apperr.ErrNotFound when none were saved.
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}
