package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cnportal/cn-portal-api/internal/models"
)

// EmployeeRepository manages persistence for the employee roster and the
// vendors employees bill through.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs an EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, company_name, first_name, middle_name, last_name, email, status, role, vendor_id, first_time_flag, created_at, updated_at`

// List returns employees matching the provided filters.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	base := "FROM employees WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"first_name": true,
		"last_name":  true,
		"email":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", employeeColumns, base, sortBy, order, size, offset)
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return employees, total, nil
}

// FindByID fetches an employee by ID.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE id = $1", employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, err
	}
	return &employee, nil
}

// ExistsByEmail checks for an existing employee email, optionally excluding
// an ID for update flows.
func (r *EmployeeRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := "SELECT 1 FROM employees WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check employee email: %w", err)
	}
	return true, nil
}

// Create inserts a new employee record.
func (r *EmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.UpdatedAt = now
	const query = `INSERT INTO employees (id, company_name, first_name, middle_name, last_name, email, status, role, vendor_id, first_time_flag, created_at, updated_at)
        VALUES (:id, :company_name, :first_name, :middle_name, :last_name, :email, :status, :role, :vendor_id, :first_time_flag, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// Update modifies an existing employee.
func (r *EmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	employee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET company_name = :company_name, first_name = :first_name, middle_name = :middle_name,
        last_name = :last_name, email = :email, status = :status, role = :role, vendor_id = :vendor_id,
        first_time_flag = :first_time_flag, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}

// Deactivate marks an employee inactive without removing history.
func (r *EmployeeRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE employees SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EmployeeStatusInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate employee: %w", err)
	}
	return nil
}

// CountByStatus aggregates employee counts per roster status.
func (r *EmployeeRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM employees GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count employees by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan employee status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// FindVendor fetches the vendor an employee bills through.
func (r *EmployeeRepository) FindVendor(ctx context.Context, employeeID string) (*models.Vendor, error) {
	const query = `SELECT id, employee_id, vendor_name, rate_per_hour, created_at FROM vendors WHERE employee_id = $1 LIMIT 1`
	var vendor models.Vendor
	if err := r.db.GetContext(ctx, &vendor, query, employeeID); err != nil {
		return nil, err
	}
	return &vendor, nil
}

// UpsertVendor creates or replaces the vendor record for an employee.
func (r *EmployeeRepository) UpsertVendor(ctx context.Context, vendor *models.Vendor) error {
	if vendor.ID == "" {
		vendor.ID = uuid.NewString()
	}
	if vendor.CreatedAt.IsZero() {
		vendor.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO vendors (id, employee_id, vendor_name, rate_per_hour, created_at)
        VALUES (:id, :employee_id, :vendor_name, :rate_per_hour, :created_at)
        ON CONFLICT (employee_id) DO UPDATE SET vendor_name = EXCLUDED.vendor_name, rate_per_hour = EXCLUDED.rate_per_hour`
	if _, err := r.db.NamedExecContext(ctx, query, vendor); err != nil {
		return fmt.Errorf("upsert vendor: %w", err)
	}
	return nil
}
