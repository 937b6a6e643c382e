package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/outpatient/ledger/internal/platform/apperr"
)

// MapError translates driver errors into apperr kinds. what names the
// entity for the message, e.g. "schedule 1f0c...".
func MapError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s already exists: %w", what, apperr.ErrConflict)
	case IsCheckViolation(err):
		return fmt.Errorf("%s violates a ledger constraint: %w", what, apperr.ErrInvalidState)
	default:
		return err
	}
}
