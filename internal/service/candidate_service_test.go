package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

type stubCandidateRepo struct {
	candidates map[string]*models.Candidate
}

func newStubCandidateRepo() *stubCandidateRepo {
	return &stubCandidateRepo{candidates: make(map[string]*models.Candidate)}
}

func (r *stubCandidateRepo) List(_ context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error) {
	var out []models.Candidate
	for _, c := range r.candidates {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *stubCandidateRepo) FindByID(_ context.Context, id string) (*models.Candidate, error) {
	c, ok := r.candidates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *c
	return &copy, nil
}

func (r *stubCandidateRepo) Create(_ context.Context, candidate *models.Candidate) error {
	if candidate.ID == "" {
		candidate.ID = "cand-" + candidate.Email
	}
	copy := *candidate
	r.candidates[candidate.ID] = &copy
	return nil
}

func (r *stubCandidateRepo) Update(_ context.Context, candidate *models.Candidate) error {
	copy := *candidate
	r.candidates[candidate.ID] = &copy
	return nil
}

func (r *stubCandidateRepo) Delete(_ context.Context, id string) error {
	delete(r.candidates, id)
	return nil
}

func candidateRequest() CandidateRequest {
	rate := 72.5
	return CandidateRequest{
		FirstName:   "Iris",
		LastName:    "Tan",
		Email:       "iris@example.com",
		PhoneNumber: "555-0100",
		ClientName:  "Globex",
		EmployerID:  "vendor-9",
		HourlyRate:  &rate,
	}
}

func TestCandidateServiceCreateDefaultsStatus(t *testing.T) {
	svc := NewCandidateService(newStubCandidateRepo(), nil, zap.NewNop())

	candidate, err := svc.Create(context.Background(), candidateRequest())
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusActive, candidate.Status)
	require.NotNil(t, candidate.HourlyRate)
	assert.Equal(t, 72.5, *candidate.HourlyRate)
}

func TestCandidateServiceCreateValidation(t *testing.T) {
	svc := NewCandidateService(newStubCandidateRepo(), nil, zap.NewNop())

	req := candidateRequest()
	req.Email = "not-an-email"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCandidateServiceUpdateAndDelete(t *testing.T) {
	repo := newStubCandidateRepo()
	svc := NewCandidateService(repo, nil, zap.NewNop())

	candidate, err := svc.Create(context.Background(), candidateRequest())
	require.NoError(t, err)

	req := candidateRequest()
	req.Status = models.CandidateStatusPlaced
	req.ClientName = "Initech"
	updated, err := svc.Update(context.Background(), candidate.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusPlaced, updated.Status)
	assert.Equal(t, "Initech", updated.ClientName)

	require.NoError(t, svc.Delete(context.Background(), candidate.ID))
	_, err = svc.Get(context.Background(), candidate.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
