package models

import (
	"strings"
	"time"
)

// TimesheetStatus tracks where a timesheet sits in the approval workflow.
type TimesheetStatus string

const (
	StatusDraft      TimesheetStatus = "DRAFT"
	StatusSubmitted  TimesheetStatus = "SUBMITTED"
	StatusApprovedL1 TimesheetStatus = "APPROVED_L1"
	StatusApprovedL2 TimesheetStatus = "APPROVED_L2"
	StatusRejected   TimesheetStatus = "REJECTED"
)

// Valid reports whether the status is one of the known values.
func (s TimesheetStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApprovedL1, StatusApprovedL2, StatusRejected:
		return true
	}
	return false
}

// ApprovalStatus derives the workflow status from the two approval flags for
// a submitted timesheet. It is the single place this derivation lives.
func ApprovalStatus(approvalL1, approvalL2 bool) TimesheetStatus {
	switch {
	case approvalL1 && approvalL2:
		return StatusApprovedL2
	case approvalL1:
		return StatusApprovedL1
	default:
		return StatusSubmitted
	}
}

// commentSeparator joins audit log entries on the timesheet.
const commentSeparator = "\n\n"

// Timesheet is the aggregate root for an employee's hours in one period.
type Timesheet struct {
	ID             string          `db:"id" json:"id"`
	EmployeeID     string          `db:"employee_id" json:"employee_id"`
	PeriodType     PeriodType      `db:"period_type" json:"period_type"`
	Year           int             `db:"year" json:"year"`
	Month          int             `db:"month" json:"month"`
	WeekNumber     *int            `db:"week_number" json:"week_number,omitempty"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	EndDate        time.Time       `db:"end_date" json:"end_date"`
	TotalHours     float64         `db:"total_hours" json:"total_hours"`
	Status         TimesheetStatus `db:"status" json:"status"`
	ApprovalL1     bool            `db:"approval_l1" json:"approval_l1"`
	ApprovalL2     bool            `db:"approval_l2" json:"approval_l2"`
	SubmittedDate  *time.Time      `db:"submitted_date" json:"submitted_date,omitempty"`
	ApprovedL1Date *time.Time      `db:"approved_l1_date" json:"approved_l1_date,omitempty"`
	ApprovedL2Date *time.Time      `db:"approved_l2_date" json:"approved_l2_date,omitempty"`
	RejectedDate   *time.Time      `db:"rejected_date" json:"rejected_date,omitempty"`
	Comments       string          `db:"comments" json:"comments"`
	FileName       *string         `db:"file_name" json:"file_name,omitempty"`
	StorageAccount *string         `db:"storage_account" json:"storage_account,omitempty"`
	RowVersion     int             `db:"row_version" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	Entries []TimesheetEntry `db:"-" json:"daily_hours"`
}

// TimesheetEntry is one day's persisted hours belonging to a timesheet.
type TimesheetEntry struct {
	ID          string    `db:"id" json:"id"`
	TimesheetID string    `db:"timesheet_id" json:"timesheet_id"`
	EmployeeID  string    `db:"employee_id" json:"employee_id"`
	Date        time.Time `db:"date" json:"date"`
	Hours       float64   `db:"hours" json:"hours"`
}

// ReplaceEntries swaps the full daily-hours set and recomputes the total.
// Entries are stored keyed by date; callers validate uniqueness first.
func (t *Timesheet) ReplaceEntries(entries []TimesheetEntry) {
	t.Entries = entries
	total := 0.0
	for _, e := range entries {
		total += e.Hours
	}
	t.TotalHours = total
}

// AppendComment adds an audit entry to the comment log, never overwriting
// previous entries.
func (t *Timesheet) AppendComment(comment string) {
	if strings.TrimSpace(comment) == "" {
		return
	}
	if t.Comments == "" {
		t.Comments = comment
		return
	}
	t.Comments = t.Comments + commentSeparator + comment
}

// DailySnapshot renders the persisted entries as daily-hours records with
// weekend tagging for API responses.
func (t *Timesheet) DailySnapshot() []DailyHours {
	out := make([]DailyHours, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = DailyHours{
			Date:      e.Date,
			Hours:     e.Hours,
			IsWeekend: IsWeekendDay(e.Date),
			IsHoliday: false,
		}
	}
	return out
}

// TimesheetFilter selects timesheets for listing endpoints.
type TimesheetFilter struct {
	EmployeeID string
	Year       *int
	Month      *int
	Statuses   []TimesheetStatus
	Page       int
	PageSize   int
}

// PendingTimesheetRow is a dashboard/queue projection of a timesheet
// awaiting approval.
type PendingTimesheetRow struct {
	ID           string          `db:"id" json:"id"`
	EmployeeID   string          `db:"employee_id" json:"employee_id"`
	EmployeeName string          `db:"employee_name" json:"employee_name"`
	Email        string          `db:"email" json:"email"`
	StartDate    time.Time       `db:"start_date" json:"start_date"`
	EndDate      time.Time       `db:"end_date" json:"end_date"`
	TotalHours   float64         `db:"total_hours" json:"total_hours"`
	Status       TimesheetStatus `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
