package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cnportal/cn-portal-api/internal/models"
)

// ErrStaleTimesheet is returned when an update loses an optimistic
// concurrency race: the stored row_version no longer matches the one the
// caller read.
var ErrStaleTimesheet = errors.New("timesheet row version mismatch")

const timesheetColumns = `id, employee_id, period_type, year, month, week_number, start_date, end_date,
        total_hours, status, approval_l1, approval_l2, submitted_date, approved_l1_date, approved_l2_date,
        rejected_date, comments, file_name, storage_account, row_version, created_at, updated_at`

// TimesheetRepository manages persistence for timesheets and their daily
// entries. The aggregate is written transactionally: the master row and the
// full entry set always change together.
type TimesheetRepository struct {
	db *sqlx.DB
}

// NewTimesheetRepository constructs a TimesheetRepository.
func NewTimesheetRepository(db *sqlx.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

// FindByID fetches a timesheet with its daily entries.
func (r *TimesheetRepository) FindByID(ctx context.Context, id string) (*models.Timesheet, error) {
	query := fmt.Sprintf("SELECT %s FROM timesheets WHERE id = $1", timesheetColumns)
	var ts models.Timesheet
	if err := r.db.GetContext(ctx, &ts, query, id); err != nil {
		return nil, err
	}
	if err := r.loadEntries(ctx, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// FindForPeriod fetches the employee's timesheet for the exact period tuple
// in one of the given statuses. Returns sql.ErrNoRows when none matches.
func (r *TimesheetRepository) FindForPeriod(ctx context.Context, employeeID string, periodType models.PeriodType, year, month int, weekNumber *int, statuses ...models.TimesheetStatus) (*models.Timesheet, error) {
	if len(statuses) == 0 {
		return nil, sql.ErrNoRows
	}
	args := []interface{}{employeeID, periodType, year, month}
	conditions := []string{"employee_id = $1", "period_type = $2", "year = $3", "month = $4"}
	if weekNumber != nil {
		conditions = append(conditions, fmt.Sprintf("week_number = $%d", len(args)+1))
		args = append(args, *weekNumber)
	} else {
		conditions = append(conditions, "week_number IS NULL")
	}
	placeholders := make([]string, len(statuses))
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, st)
	}
	conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))

	query := fmt.Sprintf("SELECT %s FROM timesheets WHERE %s ORDER BY created_at DESC LIMIT 1",
		timesheetColumns, strings.Join(conditions, " AND "))
	var ts models.Timesheet
	if err := r.db.GetContext(ctx, &ts, query, args...); err != nil {
		return nil, err
	}
	if err := r.loadEntries(ctx, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// Create inserts the timesheet and its entries in one transaction.
func (r *TimesheetRepository) Create(ctx context.Context, ts *models.Timesheet) error {
	now := time.Now().UTC()
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	if ts.UpdatedAt.IsZero() {
		ts.UpdatedAt = now
	}
	ts.RowVersion = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create timesheet: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO timesheets (id, employee_id, period_type, year, month, week_number, start_date, end_date,
        total_hours, status, approval_l1, approval_l2, submitted_date, approved_l1_date, approved_l2_date,
        rejected_date, comments, file_name, storage_account, row_version, created_at, updated_at)
        VALUES (:id, :employee_id, :period_type, :year, :month, :week_number, :start_date, :end_date,
        :total_hours, :status, :approval_l1, :approval_l2, :submitted_date, :approved_l1_date, :approved_l2_date,
        :rejected_date, :comments, :file_name, :storage_account, :row_version, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, ts); err != nil {
		return fmt.Errorf("create timesheet: %w", err)
	}
	if err := r.insertEntries(ctx, tx, ts); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create timesheet: %w", err)
	}
	return nil
}

// Update rewrites the master row and replaces the entry set in one
// transaction. The UPDATE is guarded by the row_version the caller read;
// a concurrent writer makes it match zero rows and the call fails with
// ErrStaleTimesheet.
func (r *TimesheetRepository) Update(ctx context.Context, ts *models.Timesheet) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update timesheet: %w", err)
	}
	defer tx.Rollback()

	const query = `UPDATE timesheets SET total_hours = :total_hours, status = :status,
        approval_l1 = :approval_l1, approval_l2 = :approval_l2,
        submitted_date = :submitted_date, approved_l1_date = :approved_l1_date,
        approved_l2_date = :approved_l2_date, rejected_date = :rejected_date,
        comments = :comments, file_name = :file_name, storage_account = :storage_account,
        row_version = row_version + 1, updated_at = :updated_at
        WHERE id = :id AND row_version = :row_version`
	res, err := tx.NamedExecContext(ctx, query, ts)
	if err != nil {
		return fmt.Errorf("update timesheet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timesheet rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleTimesheet
	}
	ts.RowVersion++

	if _, err := tx.ExecContext(ctx, "DELETE FROM timesheet_entries WHERE timesheet_id = $1", ts.ID); err != nil {
		return fmt.Errorf("clear timesheet entries: %w", err)
	}
	if err := r.insertEntries(ctx, tx, ts); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update timesheet: %w", err)
	}
	return nil
}

// Delete removes the timesheet and its entries.
func (r *TimesheetRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete timesheet: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM timesheet_entries WHERE timesheet_id = $1", id); err != nil {
		return fmt.Errorf("delete timesheet entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM timesheets WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete timesheet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete timesheet: %w", err)
	}
	return nil
}

// List returns timesheets matching the filter, newest first, with entries
// loaded for each row.
func (r *TimesheetRepository) List(ctx context.Context, filter models.TimesheetFilter) ([]models.Timesheet, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.EmployeeID != "" {
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	if filter.Month != nil {
		conditions = append(conditions, fmt.Sprintf("month = $%d", len(args)+1))
		args = append(args, *filter.Month)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, st)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	where := strings.Join(conditions, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM timesheets WHERE %s ORDER BY start_date DESC, created_at DESC LIMIT %d OFFSET %d",
		timesheetColumns, where, size, offset)
	var rows []models.Timesheet
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timesheets: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM timesheets WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timesheets: %w", err)
	}

	for i := range rows {
		if err := r.loadEntries(ctx, &rows[i]); err != nil {
			return nil, 0, err
		}
	}
	return rows, total, nil
}

// ListPending returns submitted and partially approved timesheets joined
// with employee identity, for the approval queue.
func (r *TimesheetRepository) ListPending(ctx context.Context, limit int) ([]models.PendingTimesheetRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT t.id, t.employee_id, e.first_name || ' ' || e.last_name AS employee_name, e.email,
        t.start_date, t.end_date, t.total_hours, t.status, t.created_at
        FROM timesheets t
        JOIN employees e ON e.id = t.employee_id
        WHERE t.status IN ($1, $2)
        ORDER BY t.submitted_date ASC NULLS LAST
        LIMIT %d`, limit)
	var rows []models.PendingTimesheetRow
	if err := r.db.SelectContext(ctx, &rows, query, models.StatusSubmitted, models.StatusApprovedL1); err != nil {
		return nil, fmt.Errorf("list pending timesheets: %w", err)
	}
	return rows, nil
}

// CountByStatus aggregates timesheet counts per workflow status.
func (r *TimesheetRepository) CountByStatus(ctx context.Context) (map[models.TimesheetStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM timesheets GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count timesheets by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TimesheetStatus]int)
	for rows.Next() {
		var status models.TimesheetStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// SumHoursForRange totals approved hours whose period overlaps the range.
func (r *TimesheetRepository) SumHoursForRange(ctx context.Context, from, to time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(total_hours), 0) FROM timesheets
        WHERE status = $1 AND start_date <= $3 AND end_date >= $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, models.StatusApprovedL2, from, to); err != nil {
		return 0, fmt.Errorf("sum approved hours: %w", err)
	}
	return total, nil
}

func (r *TimesheetRepository) loadEntries(ctx context.Context, ts *models.Timesheet) error {
	const query = `SELECT id, timesheet_id, employee_id, date, hours
        FROM timesheet_entries WHERE timesheet_id = $1 ORDER BY date ASC`
	if err := r.db.SelectContext(ctx, &ts.Entries, query, ts.ID); err != nil {
		return fmt.Errorf("load timesheet entries: %w", err)
	}
	return nil
}

func (r *TimesheetRepository) insertEntries(ctx context.Context, tx *sqlx.Tx, ts *models.Timesheet) error {
	const query = `INSERT INTO timesheet_entries (id, timesheet_id, employee_id, date, hours)
        VALUES (:id, :timesheet_id, :employee_id, :date, :hours)`
	for i := range ts.Entries {
		if _, err := tx.NamedExecContext(ctx, query, &ts.Entries[i]); err != nil {
			return fmt.Errorf("insert timesheet entry: %w", err)
		}
	}
	return nil
}
