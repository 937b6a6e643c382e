package settings

import "time"

// Settings are the system-wide booking rules. There is exactly one row.
type Settings struct {
	RequireConfirmation  bool      `db:"require_confirmation" json:"require_confirmation"`
	AppointmentRangeDays int       `db:"appointment_range_days" json:"appointment_range_days"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Defaults used until an administrator saves settings.
func Defaults() Settings {
	return Settings{RequireConfirmation: true, AppointmentRangeDays: 7}
}

// InWindow reports whether day lies in [today, today+AppointmentRangeDays].
// Both arguments are compared as calendar days.
func (s Settings) InWindow(day, today time.Time) bool {
	d := truncateDay(day)
	from := truncateDay(today)
	to := from.AddDate(0, 0, s.AppointmentRangeDays)
	return !d.Before(from) && !d.After(to)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
