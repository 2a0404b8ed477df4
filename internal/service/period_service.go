package service

import (
	"time"

	"github.com/cnportal/cn-portal-api/internal/models"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

// PeriodService computes timesheet period boundaries. All methods are pure:
// boundaries depend only on the supplied parameters, never on the clock, so
// the same inputs always produce the same calendar.
type PeriodService struct{}

// NewPeriodService constructs the period calculator.
func NewPeriodService() *PeriodService {
	return &PeriodService{}
}

// Compute derives the inclusive start/end dates and day classification for
// the requested period. Weekly and bi-weekly periods anchor to the first
// Monday on or after day 1 of (year, month); weekNumber indexes successive
// 7- or 14-day blocks from that anchor.
func (s *PeriodService) Compute(periodType models.PeriodType, year, month int, weekNumber *int) (*models.Period, error) {
	if !periodType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, "unknown period type")
	}
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, "month must be between 1 and 12")
	}
	if year < 1900 || year > 9999 {
		return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, "year out of range")
	}

	var startDate, endDate time.Time
	switch periodType {
	case models.PeriodMonthly:
		startDate = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		endDate = startDate.AddDate(0, 1, -1)
	case models.PeriodWeekly, models.PeriodBiWeekly:
		if weekNumber == nil || *weekNumber < 1 {
			return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, "week number is required for week-based periods")
		}
		anchor := firstMondayOfMonth(year, month)
		length := periodType.Days()
		startDate = anchor.AddDate(0, 0, (*weekNumber-1)*length)
		endDate = startDate.AddDate(0, 0, length-1)
	}

	period := &models.Period{
		Type:       periodType,
		Year:       year,
		Month:      month,
		WeekNumber: weekNumber,
		StartDate:  startDate,
		EndDate:    endDate,
	}
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		if models.IsWeekendDay(d) {
			period.WeekendDays = append(period.WeekendDays, d)
		} else {
			period.WorkingDays = append(period.WorkingDays, d)
		}
	}

	return period, nil
}

// AutoFill produces one daily-hours entry per day in the period. When
// weekdaysOnly is set, weekend days receive zero hours.
func (s *PeriodService) AutoFill(period *models.Period, hoursPerDay float64, weekdaysOnly bool) []models.DailyHours {
	var out []models.DailyHours
	for d := period.StartDate; !d.After(period.EndDate); d = d.AddDate(0, 0, 1) {
		weekend := models.IsWeekendDay(d)
		hours := hoursPerDay
		if weekdaysOnly && weekend {
			hours = 0
		}
		out = append(out, models.DailyHours{
			Date:      d,
			Hours:     hours,
			IsWeekend: weekend,
			IsHoliday: false,
		})
	}
	return out
}

// firstMondayOfMonth returns the first Monday on or after day 1 of the month.
func firstMondayOfMonth(year, month int) time.Time {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	daysUntilMonday := (8 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, daysUntilMonday)
}
