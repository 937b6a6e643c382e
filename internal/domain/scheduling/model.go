package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/outpatient/ledger/internal/platform/apperr"
)

// Standard half-day slots created by GenerateSlots. Schedules created by
// hand may carry any other non-empty label.
const (
	TimeSlotMorning   = "morning"
	TimeSlotAfternoon = "afternoon"
	TimeSlotEvening   = "evening"
)

// MaxTimeSlotLen bounds a time slot label in characters.
const MaxTimeSlotLen = 32

// StandardTimeSlots lists the generated slots in the order they occur in a day.
var StandardTimeSlots = []string{TimeSlotMorning, TimeSlotAfternoon, TimeSlotEvening}

const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// DateLayout is the wire and storage format of a schedule's calendar day.
const DateLayout = "2006-01-02"

// Schedule is a bookable doctor time slot. Booked counts the active
// registrations holding a unit of capacity and never exceeds MaxPatients.
type Schedule struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	DepartmentID uuid.UUID       `db:"department_id" json:"department_id"`
	DoctorID     uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	Date         string          `db:"schedule_date" json:"date"`
	TimeSlot     string          `db:"time_slot" json:"time_slot"`
	MaxPatients  int             `db:"max_patients" json:"max_patients"`
	Booked       int             `db:"booked" json:"booked"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Available returns the number of capacity units left.
func (s *Schedule) Available() int {
	if n := s.MaxPatients - s.Booked; n > 0 {
		return n
	}
	return 0
}

// Bookable reports whether one more unit can be reserved.
func (s *Schedule) Bookable() bool {
	return s.Status == StatusEnabled && s.Booked < s.MaxPatients
}

// Day parses Date.
func (s *Schedule) Day() (time.Time, error) {
	return ParseDate(s.Date)
}

// ParseDate parses a calendar day in DateLayout.
func ParseDate(v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", v, apperr.ErrValidation)
	}
	return t, nil
}

// slotRank orders the standard slots within a day; custom labels sort last.
func slotRank(label string) int {
	for i, s := range StandardTimeSlots {
		if s == label {
			return i
		}
	}
	return len(StandardTimeSlots)
}
