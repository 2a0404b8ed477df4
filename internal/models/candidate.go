package models

import "time"

// CandidateStatus values used by the staffing pipeline.
const (
	CandidateStatusActive   = "active"
	CandidateStatusPlaced   = "placed"
	CandidateStatusInactive = "inactive"
)

// Candidate is a vendor staffing record tracked separately from employees.
type Candidate struct {
	ID          string    `db:"id" json:"id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Email       string    `db:"email" json:"email"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	ClientName  string    `db:"client_name" json:"client_name"`
	EmployerID  string    `db:"employer_id" json:"employer_id"`
	Status      string    `db:"status" json:"status"`
	Skills      *string   `db:"skills" json:"skills,omitempty"`
	Experience  *int      `db:"experience" json:"experience,omitempty"`
	Resume      *string   `db:"resume" json:"resume,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	HourlyRate  *float64  `db:"hourly_rate" json:"hourly_rate,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CandidateFilter captures filtering criteria for listing candidates.
type CandidateFilter struct {
	EmployerID string
	Status     string
	ClientName string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
