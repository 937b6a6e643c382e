package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

type Service struct {
	repo     Repository
	tx       db.Transactor
	defaults Settings
}

// NewService returns a settings service that falls back to defaults until
// settings have been saved.
func NewService(repo Repository, tx db.Transactor, defaults Settings) *Service {
	return &Service{repo: repo, tx: tx, defaults: defaults}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	cur, err := s.repo.Get(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		d := s.defaults
		return &d, nil
	}
	return cur, err
}

// Update carries the fields a caller may change; nil means unchanged.
type Update struct {
	RequireConfirmation  *bool `json:"require_confirmation"`
	AppointmentRangeDays *int  `json:"appointment_range_days" validate:"omitempty,gte=0"`
}

func (s *Service) Update(ctx context.Context, u Update) (*Settings, error) {
	if u.AppointmentRangeDays != nil && *u.AppointmentRangeDays < 0 {
		return nil, fmt.Errorf("appointment_range_days must not be negative: %w", apperr.ErrValidation)
	}
	var out *Settings
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.Get(ctx)
		if err != nil {
			return err
		}
		if u.RequireConfirmation != nil {
			cur.RequireConfirmation = *u.RequireConfirmation
		}
		if u.AppointmentRangeDays != nil {
			cur.AppointmentRangeDays = *u.AppointmentRangeDays
		}
		if err := s.repo.Save(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}
