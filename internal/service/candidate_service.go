package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

type candidateRepository interface {
	List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error)
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	Create(ctx context.Context, candidate *models.Candidate) error
	Update(ctx context.Context, candidate *models.Candidate) error
	Delete(ctx context.Context, id string) error
}

// CandidateService manages the staffing pipeline records tracked alongside
// the employee roster.
type CandidateService struct {
	repo      candidateRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCandidateService constructs a CandidateService.
func NewCandidateService(repo candidateRepository, validate *validator.Validate, logger *zap.Logger) *CandidateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateService{repo: repo, validator: validate, logger: logger}
}

// CandidateRequest is the payload for creating or updating a candidate.
type CandidateRequest struct {
	FirstName   string   `json:"first_name" validate:"required"`
	LastName    string   `json:"last_name" validate:"required"`
	Email       string   `json:"email" validate:"required,email"`
	PhoneNumber string   `json:"phone_number" validate:"required"`
	ClientName  string   `json:"client_name" validate:"required"`
	EmployerID  string   `json:"employer_id" validate:"required"`
	Status      string   `json:"status" validate:"omitempty,oneof=active placed inactive"`
	Skills      *string  `json:"skills"`
	Experience  *int     `json:"experience"`
	Resume      *string  `json:"resume"`
	Notes       *string  `json:"notes"`
	HourlyRate  *float64 `json:"hourly_rate"`
}

// List returns candidates matching the filter with pagination metadata.
func (s *CandidateService) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	candidates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	return candidates, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one candidate by id.
func (s *CandidateService) Get(ctx context.Context, id string) (*models.Candidate, error) {
	candidate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	return candidate, nil
}

// Create registers a new candidate in the pipeline.
func (s *CandidateService) Create(ctx context.Context, req CandidateRequest) (*models.Candidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.Experience != nil && *req.Experience < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "experience cannot be negative")
	}

	status := req.Status
	if status == "" {
		status = models.CandidateStatusActive
	}
	candidate := &models.Candidate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		ClientName:  req.ClientName,
		EmployerID:  req.EmployerID,
		Status:      status,
		Skills:      req.Skills,
		Experience:  req.Experience,
		Resume:      req.Resume,
		Notes:       req.Notes,
		HourlyRate:  req.HourlyRate,
	}
	if err := s.repo.Create(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create candidate")
	}
	return candidate, nil
}

// Update replaces a candidate's mutable fields.
func (s *CandidateService) Update(ctx context.Context, id string, req CandidateRequest) (*models.Candidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	candidate.FirstName = req.FirstName
	candidate.LastName = req.LastName
	candidate.Email = req.Email
	candidate.PhoneNumber = req.PhoneNumber
	candidate.ClientName = req.ClientName
	candidate.EmployerID = req.EmployerID
	if req.Status != "" {
		candidate.Status = req.Status
	}
	candidate.Skills = req.Skills
	candidate.Experience = req.Experience
	candidate.Resume = req.Resume
	candidate.Notes = req.Notes
	candidate.HourlyRate = req.HourlyRate

	if err := s.repo.Update(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update candidate")
	}
	return candidate, nil
}

// Delete removes a candidate from the pipeline.
func (s *CandidateService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete candidate")
	}
	return nil
}
