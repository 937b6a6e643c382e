package registration

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Registration is a patient's claim on one unit of a schedule's capacity.
// Schedule fields are copied at booking time so the record stays readable
// after the schedule is gone.
type Registration struct {
	ID              string     `db:"id" json:"id"`
	ScheduleID      uuid.UUID  `db:"schedule_id" json:"schedule_id"`
	PatientID       string     `db:"patient_id" json:"patient_id"`
	PatientName     string     `db:"patient_name" json:"patient_name"`
	DepartmentID    uuid.UUID  `db:"department_id" json:"department_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ScheduleDate    string     `db:"schedule_date" json:"schedule_date"`
	TimeSlot        string     `db:"time_slot" json:"time_slot"`
	Status          string     `db:"status" json:"status"`
	CreateTime      time.Time  `db:"create_time" json:"create_time"`
	ConfirmTime     *time.Time `db:"confirm_time" json:"confirm_time,omitempty"`
	CancelTime      *time.Time `db:"cancel_time" json:"cancel_time,omitempty"`
	HasPrescription bool       `db:"has_prescription" json:"has_prescription"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the registration still holds a capacity unit.
func (r *Registration) Active() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

var validStatuses = map[string]bool{
	StatusPending: true, StatusConfirmed: true, StatusCancelled: true, StatusRefunded: true,
}
