package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cnportal/cn-portal-api/internal/models"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

type employeeRepository interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	Deactivate(ctx context.Context, id string) error
	FindVendor(ctx context.Context, employeeID string) (*models.Vendor, error)
	UpsertVendor(ctx context.Context, vendor *models.Vendor) error
}

type employeeUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// EmployeeService manages the employee roster. Creating an employee also
// provisions the matching portal login so the person can report hours
// immediately.
type EmployeeService struct {
	repo      employeeRepository
	users     employeeUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(repo employeeRepository, users employeeUserRepository, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{repo: repo, users: users, validator: validate, logger: logger}
}

// CreateEmployeeRequest is the payload for onboarding an employee.
type CreateEmployeeRequest struct {
	CompanyName     string  `json:"company_name" validate:"required"`
	FirstName       string  `json:"first_name" validate:"required"`
	MiddleName      *string `json:"middle_name"`
	LastName        string  `json:"last_name" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	InitialPassword string  `json:"initial_password" validate:"required,min=6"`
	VendorName      string  `json:"vendor_name"`
	RatePerHour     float64 `json:"rate_per_hour" validate:"min=0"`
}

// UpdateEmployeeRequest is the payload for editing an employee.
type UpdateEmployeeRequest struct {
	CompanyName string  `json:"company_name" validate:"required"`
	FirstName   string  `json:"first_name" validate:"required"`
	MiddleName  *string `json:"middle_name"`
	LastName    string  `json:"last_name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Status      string  `json:"status" validate:"required,oneof=Active Inactive"`
}

// List returns employees matching the filter with pagination metadata.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	employees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	return employees, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one employee by id.
func (s *EmployeeService) Get(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

// Create onboards an employee with a login and optional vendor record.
func (s *EmployeeService) Create(ctx context.Context, req CreateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an employee with this email already exists")
	}

	employee := &models.Employee{
		CompanyName:   req.CompanyName,
		FirstName:     req.FirstName,
		MiddleName:    req.MiddleName,
		LastName:      req.LastName,
		Email:         req.Email,
		Status:        models.EmployeeStatusActive,
		Role:          models.RoleEmployee,
		FirstTimeFlag: true,
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.InitialPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     employee.FullName(),
		Role:         models.RoleEmployee,
		EmployeeID:   &employee.ID,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision login")
	}

	if req.VendorName != "" {
		vendor := &models.Vendor{
			EmployeeID:  employee.ID,
			VendorName:  req.VendorName,
			RatePerHour: req.RatePerHour,
		}
		if err := s.repo.UpsertVendor(ctx, vendor); err != nil {
			s.logger.Warn("failed to create vendor record", zap.String("employee_id", employee.ID), zap.Error(err))
		} else {
			employee.VendorID = &vendor.ID
			if err := s.repo.Update(ctx, employee); err != nil {
				s.logger.Warn("failed to link vendor to employee", zap.Error(err))
			}
		}
	}

	return employee, nil
}

// Update edits an existing employee's profile.
func (s *EmployeeService) Update(ctx context.Context, id string, req UpdateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	employee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "another employee already uses this email")
	}

	employee.CompanyName = req.CompanyName
	employee.FirstName = req.FirstName
	employee.MiddleName = req.MiddleName
	employee.LastName = req.LastName
	employee.Email = req.Email
	employee.Status = req.Status
	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}

	if user, err := s.users.FindByEmployeeID(ctx, id); err == nil {
		user.FullName = employee.FullName()
		user.Active = employee.Status == models.EmployeeStatusActive
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Warn("failed to sync login with employee update", zap.Error(err))
		}
	}

	return employee, nil
}

// Deactivate marks an employee inactive and disables the linked login.
func (s *EmployeeService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate employee")
	}
	if user, err := s.users.FindByEmployeeID(ctx, id); err == nil {
		user.Active = false
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Warn("failed to disable login for deactivated employee", zap.Error(err))
		}
	}
	return nil
}

// Vendor returns the vendor record an employee bills through, if any.
func (s *EmployeeService) Vendor(ctx context.Context, employeeID string) (*models.Vendor, error) {
	vendor, err := s.repo.FindVendor(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no vendor on file for this employee")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vendor")
	}
	return vendor, nil
}

// SetVendor creates or replaces the vendor record for an employee.
func (s *EmployeeService) SetVendor(ctx context.Context, employeeID, vendorName string, ratePerHour float64) (*models.Vendor, error) {
	if vendorName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "vendor name is required")
	}
	if ratePerHour < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rate per hour cannot be negative")
	}
	if _, err := s.Get(ctx, employeeID); err != nil {
		return nil, err
	}
	vendor := &models.Vendor{EmployeeID: employeeID, VendorName: vendorName, RatePerHour: ratePerHour}
	if err := s.repo.UpsertVendor(ctx, vendor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save vendor")
	}
	return vendor, nil
}
