package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
)

type stubStatsRepo struct {
	statusCounts map[models.TimesheetStatus]int
	pending      []models.PendingTimesheetRow
	approved     float64
	pendingCalls int
}

func (r *stubStatsRepo) CountByStatus(_ context.Context) (map[models.TimesheetStatus]int, error) {
	return r.statusCounts, nil
}

func (r *stubStatsRepo) ListPending(_ context.Context, limit int) ([]models.PendingTimesheetRow, error) {
	r.pendingCalls++
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *stubStatsRepo) SumHoursForRange(_ context.Context, from, to time.Time) (float64, error) {
	return r.approved, nil
}

type stubEmployeeStats struct {
	counts map[string]int
}

func (r *stubEmployeeStats) CountByStatus(_ context.Context) (map[string]int, error) {
	return r.counts, nil
}

func TestDashboardServiceAdminComposes(t *testing.T) {
	stats := &stubStatsRepo{
		statusCounts: map[models.TimesheetStatus]int{
			models.StatusSubmitted:  3,
			models.StatusApprovedL1: 2,
			models.StatusApprovedL2: 7,
		},
		pending: []models.PendingTimesheetRow{
			{ID: "ts-1", EmployeeName: "Dana Reyes", Status: models.StatusSubmitted},
		},
		approved: 320,
	}
	employees := &stubEmployeeStats{counts: map[string]int{
		models.EmployeeStatusActive:   12,
		models.EmployeeStatusInactive: 4,
	}}
	svc := NewDashboardService(DashboardServiceParams{
		Timesheets: stats,
		Employees:  employees,
		Logger:     zap.NewNop(),
	})

	dashboard, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 5, dashboard.PendingApprovals)
	assert.Equal(t, 320.0, dashboard.ApprovedHoursMTD)
	assert.Equal(t, 12, dashboard.ActiveEmployees)
	assert.Equal(t, 4, dashboard.InactiveEmployees)
	require.Len(t, dashboard.PendingQueue, 1)
	assert.Equal(t, "Dana Reyes", dashboard.PendingQueue[0].EmployeeName)
}

func TestDashboardServicePendingQueueLimit(t *testing.T) {
	stats := &stubStatsRepo{
		pending: []models.PendingTimesheetRow{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}
	svc := NewDashboardService(DashboardServiceParams{Timesheets: stats, Logger: zap.NewNop()})

	rows, err := svc.PendingQueue(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
