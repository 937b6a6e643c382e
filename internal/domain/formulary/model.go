// Package formulary keeps the drug dictionary doctors prescribe from.
package formulary

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

var validStatuses = map[string]bool{
	StatusEnabled: true, StatusDisabled: true,
}

// Drug maps to the drug table. Disabled drugs stay listed but cannot be
// dispensed.
type Drug struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Unit      string          `db:"unit" json:"unit"`
	Stock     int             `db:"stock" json:"stock"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
