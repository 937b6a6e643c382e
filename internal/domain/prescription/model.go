package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive   = "active"
	StatusVoid     = "void"
	StatusArchived = "archived"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusVoid: true, StatusArchived: true,
}

// Prescription is written by a doctor against a confirmed registration.
type Prescription struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	PatientID      string    `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Status         string    `db:"status" json:"status"`
	Symptoms       string    `db:"symptoms" json:"symptoms"`
	Diagnosis      string    `db:"diagnosis" json:"diagnosis"`
	Remark         *string   `db:"remark" json:"remark,omitempty"`
	PrescribedAt   time.Time `db:"prescribed_at" json:"prescribed_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
