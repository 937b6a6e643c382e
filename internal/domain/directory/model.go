package directory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// Department maps to the department table.
type Department struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctor table. MaxAppointments is the daily capacity
// split evenly across the generated morning, afternoon and evening slots.
type Doctor struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	DepartmentID    uuid.UUID       `db:"department_id" json:"department_id"`
	Name            string          `db:"name" json:"name"`
	Title           *string         `db:"title" json:"title,omitempty"`
	Specialty       *string         `db:"specialty" json:"specialty,omitempty"`
	MaxAppointments int             `db:"max_appointments" json:"max_appointments"`
	Fee             decimal.Decimal `db:"fee" json:"fee"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
