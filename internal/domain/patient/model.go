// Package patient serves a patient's own record: the profile with allergies
// and medical history, the visit history assembled from registrations and
// prescriptions, and the per-doctor queue of the day.
package patient

import (
	"time"

	"github.com/google/uuid"
)

const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderUnknown = "unknown"
)

var validGenders = map[string]bool{
	GenderMale: true, GenderFemale: true, GenderUnknown: true,
}

// Profile is keyed by the patient's account id, the same id registrations
// carry as patient_id.
type Profile struct {
	PatientID      string    `db:"patient_id" json:"patient_id"`
	Name           string    `db:"name" json:"name"`
	Gender         string    `db:"gender" json:"gender"`
	BirthDate      *string   `db:"birth_date" json:"birth_date,omitempty"`
	Phone          string    `db:"phone" json:"phone"`
	Insured        bool      `db:"insured" json:"insured"`
	Allergies      string    `db:"allergies" json:"allergies"`
	MedicalHistory string    `db:"medical_history" json:"medical_history"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Age returns the patient's age in whole years on day, or false when the
// birth date is unknown.
func (p *Profile) Age(day time.Time) (int, bool) {
	if p.BirthDate == nil {
		return 0, false
	}
	born, err := time.Parse(dateLayout, *p.BirthDate)
	if err != nil {
		return 0, false
	}
	age := day.Year() - born.Year()
	if day.Month() < born.Month() || (day.Month() == born.Month() && day.Day() < born.Day()) {
		age--
	}
	return max(age, 0), true
}

// Visit is one registration in a patient's history with the prescriptions
// written against it.
type Visit struct {
	RegistrationID string           `json:"registration_id"`
	Date           string           `json:"date"`
	TimeSlot       string           `json:"time_slot"`
	DepartmentID   uuid.UUID        `json:"department_id"`
	DoctorID       uuid.UUID        `json:"doctor_id"`
	Status         string           `json:"status"`
	Prescriptions  []VisitDiagnosis `json:"prescriptions"`
}

type VisitDiagnosis struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
	Symptoms       string    `json:"symptoms"`
	Diagnosis      string    `json:"diagnosis"`
	Status         string    `json:"status"`
	PrescribedAt   time.Time `json:"prescribed_at"`
}

const (
	StageWaiting   = "waiting"
	StageCompleted = "completed"
)

// QueueEntry is one booked patient in a doctor's queue. Position is 1-based
// in booking order.
type QueueEntry struct {
	Position       int       `json:"position"`
	RegistrationID string    `json:"registration_id"`
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	Age            *int      `json:"age,omitempty"`
	TimeSlot       string    `json:"time_slot"`
	Status         string    `json:"status"`
	Stage          string    `json:"stage"`
	CreateTime     time.Time `json:"create_time"`
}

const dateLayout = "2006-01-02"
