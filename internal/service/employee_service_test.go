package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

type stubEmployeeRepo struct {
	mu        sync.Mutex
	employees map[string]*models.Employee
	vendors   map[string]*models.Vendor
}

func newStubEmployeeRepo() *stubEmployeeRepo {
	return &stubEmployeeRepo{
		employees: make(map[string]*models.Employee),
		vendors:   make(map[string]*models.Vendor),
	}
}

func (r *stubEmployeeRepo) List(_ context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Employee
	for _, e := range r.employees {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (r *stubEmployeeRepo) FindByID(_ context.Context, id string) (*models.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *e
	return &copy, nil
}

func (r *stubEmployeeRepo) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.employees {
		if e.Email == email && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubEmployeeRepo) Create(_ context.Context, employee *models.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if employee.ID == "" {
		employee.ID = "emp-" + employee.Email
	}
	copy := *employee
	r.employees[employee.ID] = &copy
	return nil
}

func (r *stubEmployeeRepo) Update(_ context.Context, employee *models.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *employee
	r.employees[employee.ID] = &copy
	return nil
}

func (r *stubEmployeeRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.employees[id]; ok {
		e.Status = models.EmployeeStatusInactive
	}
	return nil
}

func (r *stubEmployeeRepo) FindVendor(_ context.Context, employeeID string) (*models.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[employeeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *v
	return &copy, nil
}

func (r *stubEmployeeRepo) UpsertVendor(_ context.Context, vendor *models.Vendor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vendor.ID == "" {
		vendor.ID = "vendor-" + vendor.EmployeeID
	}
	copy := *vendor
	r.vendors[vendor.EmployeeID] = &copy
	return nil
}

type stubUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]*models.User)}
}

func (s *stubUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	copy := *user
	s.users[user.ID] = &copy
	return nil
}

func (s *stubUserStore) FindByEmployeeID(_ context.Context, employeeID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.EmployeeID != nil && *u.EmployeeID == employeeID {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *user
	s.users[user.ID] = &copy
	return nil
}

func TestEmployeeServiceCreateProvisionsLogin(t *testing.T) {
	repo := newStubEmployeeRepo()
	users := newStubUserStore()
	svc := NewEmployeeService(repo, users, nil, zap.NewNop())

	employee, err := svc.Create(context.Background(), CreateEmployeeRequest{
		CompanyName:     "Acme Consulting",
		FirstName:       "Dana",
		LastName:        "Reyes",
		Email:           "dana@example.com",
		InitialPassword: "welcome1",
		VendorName:      "TalentBridge",
		RatePerHour:     85,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeStatusActive, employee.Status)
	assert.Equal(t, models.RoleEmployee, employee.Role)
	assert.True(t, employee.FirstTimeFlag)

	user, err := users.FindByEmployeeID(context.Background(), employee.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", user.FullName)
	assert.NotEqual(t, "welcome1", user.PasswordHash)

	vendor, err := svc.Vendor(context.Background(), employee.ID)
	require.NoError(t, err)
	assert.Equal(t, "TalentBridge", vendor.VendorName)
	assert.Equal(t, 85.0, vendor.RatePerHour)
}

func TestEmployeeServiceCreateDuplicateEmail(t *testing.T) {
	repo := newStubEmployeeRepo()
	svc := NewEmployeeService(repo, newStubUserStore(), nil, zap.NewNop())

	req := CreateEmployeeRequest{CompanyName: "Acme", FirstName: "A", LastName: "B", Email: "dup@example.com", InitialPassword: "secret1"}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceUpdateSyncsLogin(t *testing.T) {
	repo := newStubEmployeeRepo()
	users := newStubUserStore()
	svc := NewEmployeeService(repo, users, nil, zap.NewNop())

	employee, err := svc.Create(context.Background(), CreateEmployeeRequest{
		CompanyName: "Acme", FirstName: "Dana", LastName: "Reyes", Email: "dana@example.com", InitialPassword: "welcome1",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), employee.ID, UpdateEmployeeRequest{
		CompanyName: "Acme", FirstName: "Dana", LastName: "Reyes-Lopez", Email: "dana@example.com", Status: models.EmployeeStatusInactive,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeStatusInactive, updated.Status)

	user, err := users.FindByEmployeeID(context.Background(), employee.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes-Lopez", user.FullName)
	assert.False(t, user.Active)
}

func TestEmployeeServiceDeactivateDisablesLogin(t *testing.T) {
	repo := newStubEmployeeRepo()
	users := newStubUserStore()
	svc := NewEmployeeService(repo, users, nil, zap.NewNop())

	employee, err := svc.Create(context.Background(), CreateEmployeeRequest{
		CompanyName: "Acme", FirstName: "Dana", LastName: "Reyes", Email: "dana@example.com", InitialPassword: "welcome1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), employee.ID))

	stored, err := svc.Get(context.Background(), employee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeStatusInactive, stored.Status)

	user, err := users.FindByEmployeeID(context.Background(), employee.ID)
	require.NoError(t, err)
	assert.False(t, user.Active)
}

func TestEmployeeServiceGetNotFound(t *testing.T) {
	svc := NewEmployeeService(newStubEmployeeRepo(), newStubUserStore(), nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
