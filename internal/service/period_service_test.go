package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnportal/cn-portal-api/internal/models"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

func intPtr(v int) *int { return &v }

func TestComputeWeeklyAnchorsToFirstMonday(t *testing.T) {
	svc := NewPeriodService()

	// 2025-01-01 is a Wednesday; the first Monday is 2025-01-06.
	period, err := svc.Compute(models.PeriodWeekly, 2025, 1, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), period.StartDate)
	assert.Equal(t, time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), period.EndDate)
	assert.Len(t, period.WorkingDays, 5)
	assert.Len(t, period.WeekendDays, 2)
}

func TestComputeWeeklyWeekTwoAdvancesSevenDays(t *testing.T) {
	svc := NewPeriodService()

	period, err := svc.Compute(models.PeriodWeekly, 2025, 1, intPtr(2))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), period.StartDate)
	assert.Equal(t, time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), period.EndDate)
}

func TestComputeWeeklyWhenFirstIsMonday(t *testing.T) {
	svc := NewPeriodService()

	// 2025-09-01 is a Monday and should anchor the first week itself.
	period, err := svc.Compute(models.PeriodWeekly, 2025, 9, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), period.StartDate)
}

func TestComputeBiWeeklySpansFourteenDays(t *testing.T) {
	svc := NewPeriodService()

	period, err := svc.Compute(models.PeriodBiWeekly, 2025, 1, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), period.StartDate)
	assert.Equal(t, time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), period.EndDate)
	assert.Equal(t, 14, int(period.EndDate.Sub(period.StartDate).Hours()/24)+1)
	assert.Len(t, period.WorkingDays, 10)
	assert.Len(t, period.WeekendDays, 4)
}

func TestComputeMonthlyCoversCalendarMonth(t *testing.T) {
	svc := NewPeriodService()

	period, err := svc.Compute(models.PeriodMonthly, 2024, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), period.StartDate)
	// 2024 is a leap year.
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), period.EndDate)
	assert.Len(t, period.WorkingDays, 21)
	assert.Len(t, period.WeekendDays, 8)
}

func TestComputePeriodLengthInvariant(t *testing.T) {
	svc := NewPeriodService()

	for week := 1; week <= 5; week++ {
		for month := 1; month <= 12; month++ {
			weekly, err := svc.Compute(models.PeriodWeekly, 2025, month, intPtr(week))
			require.NoError(t, err)
			assert.Equal(t, 7, len(weekly.WorkingDays)+len(weekly.WeekendDays))

			biweekly, err := svc.Compute(models.PeriodBiWeekly, 2025, month, intPtr(week))
			require.NoError(t, err)
			assert.Equal(t, 14, len(biweekly.WorkingDays)+len(biweekly.WeekendDays))
		}
	}
}

func TestComputeWeekendClassification(t *testing.T) {
	svc := NewPeriodService()

	period, err := svc.Compute(models.PeriodMonthly, 2025, 6, nil)
	require.NoError(t, err)
	for _, d := range period.WeekendDays {
		assert.Contains(t, []time.Weekday{time.Saturday, time.Sunday}, d.Weekday())
	}
	for _, d := range period.WorkingDays {
		assert.NotContains(t, []time.Weekday{time.Saturday, time.Sunday}, d.Weekday())
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	svc := NewPeriodService()

	cases := []struct {
		name       string
		periodType models.PeriodType
		year       int
		month      int
		week       *int
	}{
		{"missing week for weekly", models.PeriodWeekly, 2025, 1, nil},
		{"missing week for biweekly", models.PeriodBiWeekly, 2025, 1, nil},
		{"zero week", models.PeriodWeekly, 2025, 1, intPtr(0)},
		{"month too low", models.PeriodMonthly, 2025, 0, nil},
		{"month too high", models.PeriodMonthly, 2025, 13, nil},
		{"unknown type", models.PeriodType("QUARTERLY"), 2025, 1, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Compute(tc.periodType, tc.year, tc.month, tc.week)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidPeriod.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	svc := NewPeriodService()

	a, err := svc.Compute(models.PeriodBiWeekly, 2025, 3, intPtr(2))
	require.NoError(t, err)
	b, err := svc.Compute(models.PeriodBiWeekly, 2025, 3, intPtr(2))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAutoFillWeekdaysOnly(t *testing.T) {
	svc := NewPeriodService()

	period, err := svc.Compute(models.PeriodWeekly, 2025, 1, intPtr(1))
	require.NoError(t, err)

	entries := svc.AutoFill(period, 8, true)
	require.Len(t, entries, 7)
	total := 0.0
	for _, e := range entries {
		if e.IsWeekend {
			assert.Zero(t, e.Hours)
		} else {
			assert.Equal(t, 8.0, e.Hours)
		}
		assert.False(t, e.IsHoliday)
		total += e.Hours
	}
	assert.Equal(t, 40.0, total)
}

func TestAutoFillAllDays(t *testing.T) {
	svc := NewPeriodService()

	period, err := svc.Compute(models.PeriodWeekly, 2025, 1, intPtr(1))
	require.NoError(t, err)

	entries := svc.AutoFill(period, 4, false)
	require.Len(t, entries, 7)
	for _, e := range entries {
		assert.Equal(t, 4.0, e.Hours)
	}
}
