package scheduling

import (
	"errors"
	"testing"

	"github.com/outpatient/ledger/internal/platform/apperr"
)

func TestSchedule_Available(t *testing.T) {
	tests := []struct {
		max, booked, want int
	}{
		{10, 0, 10},
		{10, 7, 3},
		{10, 10, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		s := &Schedule{MaxPatients: tt.max, Booked: tt.booked}
		if got := s.Available(); got != tt.want {
			t.Errorf("Available(%d/%d) = %d, want %d", tt.booked, tt.max, got, tt.want)
		}
	}
}

func TestSchedule_Bookable(t *testing.T) {
	if !(&Schedule{Status: StatusEnabled, MaxPatients: 1}).Bookable() {
		t.Error("expected enabled schedule with room to be bookable")
	}
	if (&Schedule{Status: StatusEnabled, MaxPatients: 1, Booked: 1}).Bookable() {
		t.Error("full schedule must not be bookable")
	}
	if (&Schedule{Status: StatusDisabled, MaxPatients: 5}).Bookable() {
		t.Error("disabled schedule must not be bookable")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year() != 2024 || d.Month() != 3 || d.Day() != 1 {
		t.Errorf("unexpected date %v", d)
	}

	for _, bad := range []string{"", "2024/03/01", "01-03-2024", "2024-02-30"} {
		if _, err := ParseDate(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ParseDate(%q): expected validation error, got %v", bad, err)
		}
	}
}

func TestSlotRank(t *testing.T) {
	if !(slotRank(TimeSlotMorning) < slotRank(TimeSlotAfternoon) && slotRank(TimeSlotAfternoon) < slotRank(TimeSlotEvening)) {
		t.Error("standard slots out of order")
	}
	if slotRank("09:00-09:30") <= slotRank(TimeSlotEvening) {
		t.Error("custom labels should sort after standard slots")
	}
}
