package formulary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/platform/apperr"
	"github.com/outpatient/ledger/internal/platform/db"
)

type Service struct {
	repo   Repository
	tx     db.Transactor
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger}
}

func validateDrug(d *Drug) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Unit = strings.TrimSpace(d.Unit)
	if d.Name == "" {
		return fmt.Errorf("name is required: %w", apperr.ErrValidation)
	}
	if d.Unit == "" {
		return fmt.Errorf("unit is required: %w", apperr.ErrValidation)
	}
	if d.Price.IsNegative() {
		return fmt.Errorf("price must not be negative: %w", apperr.ErrValidation)
	}
	if d.Stock < 0 {
		return fmt.Errorf("stock must not be negative: %w", apperr.ErrValidation)
	}
	if d.Status == "" {
		d.Status = StatusEnabled
	}
	if !validStatuses[d.Status] {
		return fmt.Errorf("invalid drug status %q: %w", d.Status, apperr.ErrValidation)
	}
	return nil
}

func (s *Service) CreateDrug(ctx context.Context, d *Drug) error {
	if err := validateDrug(d); err != nil {
		return err
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) GetDrug(ctx context.Context, id uuid.UUID) (*Drug, error) {
	return s.repo.GetByID(ctx, id)
}

// DrugUpdate carries the fields a caller may change; nil means unchanged.
// Stock moves through AdjustStock only.
type DrugUpdate struct {
	Name   *string          `json:"name" validate:"omitempty,max=64"`
	Price  *decimal.Decimal `json:"price"`
	Unit   *string          `json:"unit" validate:"omitempty,max=16"`
	Status *string          `json:"status" validate:"omitempty,oneof=enabled disabled"`
}

func (s *Service) UpdateDrug(ctx context.Context, id uuid.UUID, u DrugUpdate) (*Drug, error) {
	var out *Drug
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if u.Name != nil {
			d.Name = *u.Name
		}
		if u.Price != nil {
			d.Price = *u.Price
		}
		if u.Unit != nil {
			d.Unit = *u.Unit
		}
		if u.Status != nil {
			d.Status = *u.Status
		}
		if err := validateDrug(d); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func (s *Service) DeleteDrug(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) SearchDrugs(ctx context.Context, params map[string]string, limit, offset int) ([]*Drug, int, error) {
	if p, ok := params["status"]; ok && !validStatuses[p] {
		return nil, 0, fmt.Errorf("invalid drug status %q: %w", p, apperr.ErrValidation)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// AdjustStock adds delta to the drug's stock. Negative deltas dispense and
// are refused for disabled drugs or when stock would go below zero.
func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*Drug, error) {
	if delta == 0 {
		return nil, fmt.Errorf("delta must not be zero: %w", apperr.ErrValidation)
	}
	var out *Drug
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if delta < 0 && d.Status != StatusEnabled {
			return fmt.Errorf("drug %s is disabled: %w", id, apperr.ErrInvalidState)
		}
		if d.Stock+delta < 0 {
			return fmt.Errorf("drug %s has %d in stock, cannot take %d: %w", id, d.Stock, -delta, apperr.ErrInvalidState)
		}
		d.Stock += delta
		if err := s.repo.Update(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("drug_id", out.ID.String()).
		Int("delta", delta).
		Int("stock", out.Stock).
		Msg("drug stock adjusted")
	return out, nil
}
