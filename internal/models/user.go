package models

import "time"

// UserRole represents the available roles for the RBAC system. Employees own
// and edit their timesheets; managers and clients approve; admins can do
// everything including reopening approved timesheets.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleManager  UserRole = "MANAGER"
	RoleClient   UserRole = "CLIENT"
	RoleEmployee UserRole = "EMP"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleClient, RoleEmployee:
		return true
	}
	return false
}

// CanApprove reports whether the role may approve or reject timesheets.
func (r UserRole) CanApprove() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleClient:
		return true
	}
	return false
}

// User represents a portal login identity stored in the users table. Every
// employee has a user row; admins/managers/clients may exist without an
// employee record.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	EmployeeID   *string    `db:"employee_id" json:"employee_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter selects users for listing endpoints.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
