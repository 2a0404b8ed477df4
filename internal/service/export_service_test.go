package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
	"github.com/cnportal/cn-portal-api/pkg/export"
	"github.com/cnportal/cn-portal-api/pkg/storage"
)

type timesheetSourceStub struct{}

func (timesheetSourceStub) List(_ context.Context, filter models.TimesheetFilter) ([]models.Timesheet, int, error) {
	week := 1
	submitted := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)
	sheets := []models.Timesheet{
		{
			ID:            "ts-1",
			EmployeeID:    "emp-1",
			PeriodType:    models.PeriodWeekly,
			Year:          2025,
			Month:         1,
			WeekNumber:    &week,
			StartDate:     time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			EndDate:       time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
			TotalHours:    40,
			Status:        models.StatusApprovedL2,
			SubmittedDate: &submitted,
		},
		{
			ID:         "ts-2",
			EmployeeID: "emp-2",
			PeriodType: models.PeriodWeekly,
			Year:       2025,
			Month:      1,
			WeekNumber: &week,
			StartDate:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			EndDate:    time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
			TotalHours: 32,
			Status:     models.StatusSubmitted,
		},
	}
	if len(filter.Statuses) > 0 {
		var filtered []models.Timesheet
		for _, ts := range sheets {
			for _, status := range filter.Statuses {
				if ts.Status == status {
					filtered = append(filtered, ts)
				}
			}
		}
		sheets = filtered
	}
	return sheets, len(sheets), nil
}

func (timesheetSourceStub) ListPending(_ context.Context, limit int) ([]models.PendingTimesheetRow, error) {
	return []models.PendingTimesheetRow{
		{
			ID:           "ts-2",
			EmployeeID:   "emp-2",
			EmployeeName: "Jordan Vale",
			Email:        "jordan@example.com",
			StartDate:    time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
			TotalHours:   32,
			Status:       models.StatusSubmitted,
		},
	}, nil
}

type employeeSourceStub struct{}

func (employeeSourceStub) List(_ context.Context, _ models.EmployeeFilter) ([]models.Employee, int, error) {
	employees := []models.Employee{
		{ID: "emp-1", FirstName: "Avery", LastName: "Chen"},
		{ID: "emp-2", FirstName: "Jordan", LastName: "Vale"},
	}
	return employees, len(employees), nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(timesheetSourceStub{}, employeeSourceStub{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateTimesheetCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeTimesheets,
		Params:    models.ReportJobParams{Year: 2025, Month: 1, Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/export/")

	data, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Contains(t, string(data), "Avery Chen")
	require.Contains(t, string(data), "APPROVED_L2")
}

func TestExportServiceGenerateHoursCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-2",
		Type:      models.ReportTypeHours,
		Params:    models.ReportJobParams{Year: 2025, Month: 1, Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	// Only fully approved timesheets count towards billable hours.
	require.Contains(t, string(data), "40.00")
	require.NotContains(t, string(data), "Jordan Vale")
}

func TestExportServiceGenerateSummaryPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-3",
		Type:      models.ReportTypeSummary,
		Params:    models.ReportJobParams{Year: 2025, Month: 1, Format: models.ReportFormatPDF},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, result.Format)

	path := filepath.Clean(store.Path(result.RelativePath))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGeneratePendingCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-4",
		Type:      models.ReportTypePending,
		Params:    models.ReportJobParams{Year: 2025, Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Contains(t, string(data), "jordan@example.com")
}
