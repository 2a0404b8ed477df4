package models

import "time"

// EmployeeStatus values mirror the portal's roster states.
const (
	EmployeeStatusActive   = "Active"
	EmployeeStatusInactive = "Inactive"
)

// Employee represents a portal employee who reports hours.
type Employee struct {
	ID            string    `db:"id" json:"id"`
	CompanyName   string    `db:"company_name" json:"company_name"`
	FirstName     string    `db:"first_name" json:"first_name"`
	MiddleName    *string   `db:"middle_name" json:"middle_name,omitempty"`
	LastName      string    `db:"last_name" json:"last_name"`
	Email         string    `db:"email" json:"email"`
	Status        string    `db:"status" json:"status"`
	Role          UserRole  `db:"role" json:"role"`
	VendorID      *string   `db:"vendor_id" json:"vendor_id,omitempty"`
	FirstTimeFlag bool      `db:"first_time_flag" json:"first_time_flag"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts for display rows.
func (e *Employee) FullName() string {
	if e.MiddleName != nil && *e.MiddleName != "" {
		return e.FirstName + " " + *e.MiddleName + " " + e.LastName
	}
	return e.FirstName + " " + e.LastName
}

// EmployeeFilter captures filtering criteria for listing employees.
type EmployeeFilter struct {
	Status    string
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Vendor is the staffing vendor an employee bills through.
type Vendor struct {
	ID          string    `db:"id" json:"id"`
	EmployeeID  string    `db:"employee_id" json:"employee_id"`
	VendorName  string    `db:"vendor_name" json:"vendor_name"`
	RatePerHour float64   `db:"rate_per_hour" json:"rate_per_hour"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
