package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/outpatient/ledger/internal/platform/auth"
)

// Account is a login. Doctors are linked to their directory entry so the
// doctor workspace can scope its queries.
type Account struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	DoctorID     *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// homes maps each role to its landing area.
var homes = map[string]string{
	auth.RoleAdmin:   "/admin",
	auth.RoleDoctor:  "/doctor",
	auth.RolePatient: "/patient",
}

// Home returns the landing area for role.
func Home(role string) string {
	return homes[role]
}
