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

type stubUserRepo struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*models.User)}
}

func (r *stubUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *u
	return &copy, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) Create(_ context.Context, user *models.User) error {
	copy := *user
	r.users[user.ID] = &copy
	return nil
}

func (r *stubUserRepo) Update(_ context.Context, user *models.User) error {
	copy := *user
	r.users[user.ID] = &copy
	return nil
}

func (r *stubUserRepo) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	if u, ok := r.users[id]; ok {
		u.Role = role
	}
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if u, ok := r.users[id]; ok {
		u.Active = false
	}
	return nil
}

func (r *stubUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.auditLogs = append(r.auditLogs, log)
	return nil
}

func (r *stubUserRepo) lastAuditAction() string {
	if len(r.auditLogs) == 0 {
		return ""
	}
	return r.auditLogs[len(r.auditLogs)-1].Action
}

func TestUserServiceCreate(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewUserService(repo, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "Manager@Example.com",
		FullName: "Morgan Hale",
		Role:     models.RoleManager,
		Active:   true,
		Password: "secret1",
	}, "actor-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "manager@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.Equal(t, models.AuditActionUserCreate, repo.lastAuditAction())
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewUserService(repo, nil, zap.NewNop())

	req := CreateUserRequest{Email: "dup@example.com", FullName: "A", Role: models.RoleClient, Password: "secret1"}
	_, err := svc.Create(context.Background(), req, "actor-1", models.LoginRequest{})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req, "actor-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateRoleAuditsChange(t *testing.T) {
	repo := newStubUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Email: "emp@example.com", Role: models.RoleEmployee, Active: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	user, err := svc.UpdateRole(context.Background(), "u1", models.RoleManager, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
	assert.Equal(t, models.AuditActionRoleChange, repo.lastAuditAction())

	// Same role again is a no-op with no extra audit entry.
	before := len(repo.auditLogs)
	_, err = svc.UpdateRole(context.Background(), "u1", models.RoleManager, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Len(t, repo.auditLogs, before)
}

func TestUserServiceUpdateRoleRejectsUnknownRole(t *testing.T) {
	repo := newStubUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleEmployee}
	svc := NewUserService(repo, nil, zap.NewNop())

	_, err := svc.UpdateRole(context.Background(), "u1", models.UserRole("WIZARD"), "admin-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteSoftDeletes(t *testing.T) {
	repo := newStubUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleClient, Active: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "u1", "admin-1", models.LoginRequest{}))
	assert.False(t, repo.users["u1"].Active)
	assert.Equal(t, models.AuditActionUserDelete, repo.lastAuditAction())
}
