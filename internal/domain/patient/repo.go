package patient

import "context"

type Repository interface {
	// Get returns the stored profile or apperr.ErrNotFound.
	Get(ctx context.Context, patientID string) (*Profile, error)
	// Save inserts or replaces the profile.
	Save(ctx context.Context, p *Profile) error
}
