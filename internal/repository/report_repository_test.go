package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnportal/cn-portal-api/internal/models"
)

func newReportMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func exportJobRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message",
	}).AddRow("job-1", models.ReportTypeTimesheets, []byte(`{"year":2025,"month":1,"format":"csv"}`),
		models.ReportStatusQueued, 0, nil, "admin-1", now, nil, nil)
}

func TestReportRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newReportMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO export_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeTimesheets,
		Params:    models.ReportJobParams{Year: 2025, Month: 1, Format: models.ReportFormatCSV},
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newReportMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM export_jobs WHERE id = \\$1").
		WithArgs("job-1").
		WillReturnRows(exportJobRows())

	job, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeTimesheets, job.Type)
	assert.Equal(t, 2025, job.Params.Year)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdatePartial(t *testing.T) {
	db, mock, cleanup := newReportMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	status := models.ReportStatusProcessing
	progress := 10
	mock.ExpectExec("UPDATE export_jobs SET status = \\$1, progress = \\$2 WHERE id = \\$3").
		WithArgs(status, progress, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{Status: &status, Progress: &progress})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateNoFieldsIsNoop(t *testing.T) {
	db, mock, cleanup := newReportMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateReportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newReportMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM export_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT \\$1").
		WithArgs(20).
		WillReturnRows(exportJobRows())

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
