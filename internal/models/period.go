package models

import "time"

// PeriodType enumerates the supported timesheet reporting periods.
type PeriodType string

const (
	PeriodWeekly   PeriodType = "WEEKLY"
	PeriodBiWeekly PeriodType = "BIWEEKLY"
	PeriodMonthly  PeriodType = "MONTHLY"
)

// Valid reports whether the period type is one of the known values.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodBiWeekly, PeriodMonthly:
		return true
	}
	return false
}

// Days returns the fixed length for week-based periods and 0 for monthly,
// whose length depends on the calendar month.
func (p PeriodType) Days() int {
	switch p {
	case PeriodWeekly:
		return 7
	case PeriodBiWeekly:
		return 14
	}
	return 0
}

// Period is a computed, non-persisted date range an employee reports hours
// against. StartDate and EndDate are inclusive.
type Period struct {
	Type        PeriodType  `json:"period_type"`
	Year        int         `json:"year"`
	Month       int         `json:"month"`
	WeekNumber  *int        `json:"week_number,omitempty"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	WorkingDays []time.Time `json:"working_days"`
	WeekendDays []time.Time `json:"weekend_days"`
}

// Contains reports whether the given date falls inside the period bounds.
func (p *Period) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// DateOnly normalises a timestamp to midnight UTC, the canonical form for
// period boundaries and daily entries.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyHours is a single day's reported hours within a period.
type DailyHours struct {
	Date      time.Time `json:"date"`
	Hours     float64   `json:"hours"`
	IsWeekend bool      `json:"is_weekend"`
	IsHoliday bool      `json:"is_holiday"`
}

// IsWeekendDay reports whether the date falls on Saturday or Sunday.
func IsWeekendDay(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
