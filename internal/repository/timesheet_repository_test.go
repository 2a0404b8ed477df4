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

func newTimesheetMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func timesheetRows() *sqlmock.Rows {
	now := time.Now()
	week := 1
	return sqlmock.NewRows([]string{
		"id", "employee_id", "period_type", "year", "month", "week_number", "start_date", "end_date",
		"total_hours", "status", "approval_l1", "approval_l2", "submitted_date", "approved_l1_date",
		"approved_l2_date", "rejected_date", "comments", "file_name", "storage_account", "row_version",
		"created_at", "updated_at",
	}).AddRow("ts-1", "emp-1", models.PeriodWeekly, 2025, 1, week,
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		40.0, models.StatusSubmitted, false, false, now, nil, nil, nil, "", nil, nil, 3, now, now)
}

func entryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "timesheet_id", "employee_id", "date", "hours"}).
		AddRow("e-1", "ts-1", "emp-1", time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 8.0)
}

func TestTimesheetRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newTimesheetMock(t)
	defer cleanup()
	repo := NewTimesheetRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM timesheets WHERE id = \\$1").
		WithArgs("ts-1").
		WillReturnRows(timesheetRows())
	mock.ExpectQuery("SELECT id, timesheet_id, employee_id, date, hours").
		WithArgs("ts-1").
		WillReturnRows(entryRows())

	ts, err := repo.FindByID(context.Background(), "ts-1")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", ts.EmployeeID)
	assert.Equal(t, 3, ts.RowVersion)
	require.Len(t, ts.Entries, 1)
	assert.Equal(t, 8.0, ts.Entries[0].Hours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimesheetRepositoryFindForPeriodFiltersStatus(t *testing.T) {
	db, mock, cleanup := newTimesheetMock(t)
	defer cleanup()
	repo := NewTimesheetRepository(db)
	week := 1

	mock.ExpectQuery("SELECT (.+) FROM timesheets WHERE employee_id = \\$1 AND period_type = \\$2 AND year = \\$3 AND month = \\$4 AND week_number = \\$5 AND status IN \\(\\$6\\)").
		WithArgs("emp-1", models.PeriodWeekly, 2025, 1, week, models.StatusDraft).
		WillReturnRows(timesheetRows())
	mock.ExpectQuery("SELECT id, timesheet_id, employee_id, date, hours").
		WithArgs("ts-1").
		WillReturnRows(entryRows())

	ts, err := repo.FindForPeriod(context.Background(), "emp-1", models.PeriodWeekly, 2025, 1, &week, models.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, "ts-1", ts.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimesheetRepositoryCreateInsertsAggregate(t *testing.T) {
	db, mock, cleanup := newTimesheetMock(t)
	defer cleanup()
	repo := NewTimesheetRepository(db)
	week := 1

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timesheets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO timesheet_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ts := &models.Timesheet{
		ID:         "ts-1",
		EmployeeID: "emp-1",
		PeriodType: models.PeriodWeekly,
		Year:       2025,
		Month:      1,
		WeekNumber: &week,
		StartDate:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		Status:     models.StatusDraft,
		Entries: []models.TimesheetEntry{
			{ID: "e-1", TimesheetID: "ts-1", EmployeeID: "emp-1", Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), Hours: 8},
		},
	}
	require.NoError(t, repo.Create(context.Background(), ts))
	assert.Equal(t, 1, ts.RowVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimesheetRepositoryUpdateDetectsStaleVersion(t *testing.T) {
	db, mock, cleanup := newTimesheetMock(t)
	defer cleanup()
	repo := NewTimesheetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE timesheets SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ts := &models.Timesheet{ID: "ts-1", RowVersion: 2}
	err := repo.Update(context.Background(), ts)
	require.ErrorIs(t, err, ErrStaleTimesheet)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimesheetRepositoryUpdateReplacesEntries(t *testing.T) {
	db, mock, cleanup := newTimesheetMock(t)
	defer cleanup()
	repo := NewTimesheetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE timesheets SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM timesheet_entries WHERE timesheet_id = \\$1").
		WithArgs("ts-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO timesheet_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ts := &models.Timesheet{
		ID:         "ts-1",
		RowVersion: 2,
		Entries: []models.TimesheetEntry{
			{ID: "e-2", TimesheetID: "ts-1", EmployeeID: "emp-1", Date: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), Hours: 6},
		},
	}
	require.NoError(t, repo.Update(context.Background(), ts))
	assert.Equal(t, 3, ts.RowVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimesheetRepositoryDeleteRemovesEntriesFirst(t *testing.T) {
	db, mock, cleanup := newTimesheetMock(t)
	defer cleanup()
	repo := NewTimesheetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM timesheet_entries WHERE timesheet_id = \\$1").
		WithArgs("ts-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM timesheets WHERE id = \\$1").
		WithArgs("ts-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "ts-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimesheetRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newTimesheetMock(t)
	defer cleanup()
	repo := NewTimesheetRepository(db)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM timesheets GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(models.StatusSubmitted, 4).
			AddRow(models.StatusApprovedL2, 9))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, counts[models.StatusSubmitted])
	assert.Equal(t, 9, counts[models.StatusApprovedL2])
	assert.NoError(t, mock.ExpectationsWereMet())
}
