package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cnportal/cn-portal-api/internal/models"
)

// CandidateRepository manages persistence for staffing pipeline candidates.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs a CandidateRepository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `id, first_name, last_name, email, phone_number, client_name, employer_id, status, skills, experience, resume, notes, hourly_rate, created_at, updated_at`

// List returns candidates matching the provided filters.
func (r *CandidateRepository) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error) {
	base := "FROM candidates WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.EmployerID != "" {
		conditions = append(conditions, fmt.Sprintf("employer_id = $%d", len(args)+1))
		args = append(args, filter.EmployerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.ClientName != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(client_name) = LOWER($%d)", len(args)+1))
		args = append(args, filter.ClientName)
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
		"first_name":  true,
		"last_name":   true,
		"client_name": true,
		"created_at":  true,
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", candidateColumns, base, sortBy, order, size, offset)
	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list candidates: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count candidates: %w", err)
	}
	return candidates, total, nil
}

// FindByID fetches a candidate by ID.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	query := fmt.Sprintf("SELECT %s FROM candidates WHERE id = $1", candidateColumns)
	var candidate models.Candidate
	if err := r.db.GetContext(ctx, &candidate, query, id); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// Create inserts a new candidate record.
func (r *CandidateRepository) Create(ctx context.Context, candidate *models.Candidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now
	const query = `INSERT INTO candidates (id, first_name, last_name, email, phone_number, client_name, employer_id, status, skills, experience, resume, notes, hourly_rate, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :email, :phone_number, :client_name, :employer_id, :status, :skills, :experience, :resume, :notes, :hourly_rate, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, candidate); err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

// Update modifies an existing candidate.
func (r *CandidateRepository) Update(ctx context.Context, candidate *models.Candidate) error {
	candidate.UpdatedAt = time.Now().UTC()
	const query = `UPDATE candidates SET first_name = :first_name, last_name = :last_name, email = :email,
        phone_number = :phone_number, client_name = :client_name, employer_id = :employer_id, status = :status,
        skills = :skills, experience = :experience, resume = :resume, notes = :notes, hourly_rate = :hourly_rate,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, candidate); err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	return nil
}

// Delete removes a candidate record.
func (r *CandidateRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM candidates WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	return nil
}
