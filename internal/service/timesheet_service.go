package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
	"github.com/cnportal/cn-portal-api/internal/repository"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

// maxTotalHours is a loose sanity ceiling on a submission's total, not a
// period-length-aware limit (24h x 7 days).
const maxTotalHours = 168

const reopenComment = "Timesheet reopened by admin for edits"

type timesheetRepository interface {
	FindByID(ctx context.Context, id string) (*models.Timesheet, error)
	FindForPeriod(ctx context.Context, employeeID string, periodType models.PeriodType, year, month int, weekNumber *int, statuses ...models.TimesheetStatus) (*models.Timesheet, error)
	Create(ctx context.Context, ts *models.Timesheet) error
	Update(ctx context.Context, ts *models.Timesheet) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.TimesheetFilter) ([]models.Timesheet, int, error)
}

type timesheetAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type attachmentStore interface {
	Save(filename string, data []byte) (string, error)
}

type attachmentSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
}

type workflowMetrics interface {
	ObserveTimesheetEvent(event string)
}

// TimesheetServiceConfig tunes attachment handling.
type TimesheetServiceConfig struct {
	AllowedAttachmentMIMEs []string
	MaxAttachmentBytes     int64
}

// TimesheetService owns the timesheet lifecycle: drafts, submission, the
// two-level approval chain, rejection, administrative reopen and deletion.
// Mutations for the same (employee, period) tuple and for the same timesheet
// id are serialized through per-key locks; the repository additionally
// enforces a row-version check so concurrent writers cannot clobber each
// other.
type TimesheetService struct {
	repo      timesheetRepository
	periods   *PeriodService
	audit     timesheetAuditLogger
	store     attachmentStore
	signer    attachmentSigner
	metrics   workflowMetrics
	validator *validator.Validate
	logger    *zap.Logger
	config    TimesheetServiceConfig

	locks sync.Map
	now   func() time.Time
}

// NewTimesheetService constructs the lifecycle engine.
func NewTimesheetService(repo timesheetRepository, periods *PeriodService, audit timesheetAuditLogger, store attachmentStore, signer attachmentSigner, metrics workflowMetrics, validate *validator.Validate, logger *zap.Logger, cfg TimesheetServiceConfig) *TimesheetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if periods == nil {
		periods = NewPeriodService()
	}
	if len(cfg.AllowedAttachmentMIMEs) == 0 {
		cfg.AllowedAttachmentMIMEs = []string{"application/pdf", "image/jpeg", "image/jpg", "image/png"}
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = 10 * 1024 * 1024
	}
	return &TimesheetService{
		repo:      repo,
		periods:   periods,
		audit:     audit,
		store:     store,
		signer:    signer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DailyHoursInput is one day's hours as supplied by the caller.
type DailyHoursInput struct {
	Date  string  `json:"date" validate:"required"`
	Hours float64 `json:"hours"`
}

// TimesheetEntryRequest carries a full draft or submission payload. The
// daily-hours set always replaces the stored one; there is no merge.
type TimesheetEntryRequest struct {
	EmployeeID string            `json:"employee_id" validate:"required"`
	PeriodType models.PeriodType `json:"period_type" validate:"required"`
	Year       int               `json:"year" validate:"required"`
	Month      int               `json:"month" validate:"required,min=1,max=12"`
	WeekNumber *int              `json:"week_number"`
	DailyHours []DailyHoursInput `json:"daily_hours" validate:"required,min=1,dive"`
}

// AutoFillRequest asks for a prefilled daily-hours template.
type AutoFillRequest struct {
	PeriodType   models.PeriodType `json:"period_type" validate:"required"`
	Year         int               `json:"year" validate:"required"`
	Month        int               `json:"month" validate:"required,min=1,max=12"`
	WeekNumber   *int              `json:"week_number"`
	HoursPerDay  float64           `json:"hours_per_day" validate:"min=0,max=24"`
	WeekdaysOnly bool              `json:"weekdays_only"`
}

// AttachmentRequest uploads supporting material for a timesheet.
type AttachmentRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	Base64      string `json:"base64" validate:"required"`
}

// AttachmentInfo describes a stored attachment.
type AttachmentInfo struct {
	FileName    string    `json:"file_name"`
	Size        int       `json:"size"`
	ContentType string    `json:"content_type"`
	SignedURL   string    `json:"signed_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TimesheetView is the API projection of a timesheet aggregate.
type TimesheetView struct {
	ID             string                 `json:"id"`
	EmployeeID     string                 `json:"employee_id"`
	PeriodType     models.PeriodType      `json:"period_type"`
	Year           int                    `json:"year"`
	Month          int                    `json:"month"`
	WeekNumber     *int                   `json:"week_number,omitempty"`
	StartDate      time.Time              `json:"start_date"`
	EndDate        time.Time              `json:"end_date"`
	TotalHours     float64                `json:"total_hours"`
	Status         models.TimesheetStatus `json:"status"`
	ApprovalL1     bool                   `json:"approval_l1"`
	ApprovalL2     bool                   `json:"approval_l2"`
	SubmittedDate  *time.Time             `json:"submitted_date,omitempty"`
	ApprovedL1Date *time.Time             `json:"approved_l1_date,omitempty"`
	ApprovedL2Date *time.Time             `json:"approved_l2_date,omitempty"`
	RejectedDate   *time.Time             `json:"rejected_date,omitempty"`
	Comments       string                 `json:"comments"`
	FileName       *string                `json:"file_name,omitempty"`
	DailyHours     []models.DailyHours    `json:"daily_hours"`
	CreatedAt      time.Time              `json:"created_at"`
}

func newTimesheetView(ts *models.Timesheet) *TimesheetView {
	return &TimesheetView{
		ID:             ts.ID,
		EmployeeID:     ts.EmployeeID,
		PeriodType:     ts.PeriodType,
		Year:           ts.Year,
		Month:          ts.Month,
		WeekNumber:     ts.WeekNumber,
		StartDate:      ts.StartDate,
		EndDate:        ts.EndDate,
		TotalHours:     ts.TotalHours,
		Status:         ts.Status,
		ApprovalL1:     ts.ApprovalL1,
		ApprovalL2:     ts.ApprovalL2,
		SubmittedDate:  ts.SubmittedDate,
		ApprovedL1Date: ts.ApprovedL1Date,
		ApprovedL2Date: ts.ApprovedL2Date,
		RejectedDate:   ts.RejectedDate,
		Comments:       ts.Comments,
		FileName:       ts.FileName,
		DailyHours:     ts.DailySnapshot(),
		CreatedAt:      ts.CreatedAt,
	}
}

// PeriodInfo exposes the period calculator to callers.
func (s *TimesheetService) PeriodInfo(periodType models.PeriodType, year, month int, weekNumber *int) (*models.Period, error) {
	return s.periods.Compute(periodType, year, month, weekNumber)
}

// AutoFill produces a daily-hours template for the requested period.
func (s *TimesheetService) AutoFill(req AutoFillRequest) ([]models.DailyHours, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	period, err := s.periods.Compute(req.PeriodType, req.Year, req.Month, req.WeekNumber)
	if err != nil {
		return nil, err
	}
	return s.periods.AutoFill(period, req.HoursPerDay, req.WeekdaysOnly), nil
}

// GetDraft returns the employee's draft for the period, or nil when none
// exists.
func (s *TimesheetService) GetDraft(ctx context.Context, claims *models.JWTClaims, periodType models.PeriodType, year, month int, weekNumber *int) (*TimesheetView, error) {
	if err := s.checkOwnership(claims, ""); err != nil {
		return nil, err
	}
	if _, err := s.periods.Compute(periodType, year, month, weekNumber); err != nil {
		return nil, err
	}
	employeeID := s.actingEmployeeID(claims)
	ts, err := s.repo.FindForPeriod(ctx, employeeID, periodType, year, month, weekNumber, models.StatusDraft)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	return newTimesheetView(ts), nil
}

// SaveDraft creates or fully replaces the draft for (employee, period).
// Repeated identical calls are idempotent.
func (s *TimesheetService) SaveDraft(ctx context.Context, claims *models.JWTClaims, req TimesheetEntryRequest) (*TimesheetView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if err := s.checkOwnership(claims, req.EmployeeID); err != nil {
		return nil, err
	}
	period, err := s.periods.Compute(req.PeriodType, req.Year, req.Month, req.WeekNumber)
	if err != nil {
		return nil, err
	}
	entries, err := s.buildEntries(req.EmployeeID, period, req.DailyHours)
	if err != nil {
		return nil, err
	}

	unlock := s.lockFor(periodLockKey(req.EmployeeID, period))
	defer unlock()

	now := s.now()
	draft, err := s.repo.FindForPeriod(ctx, req.EmployeeID, req.PeriodType, req.Year, req.Month, req.WeekNumber, models.StatusDraft)
	switch {
	case err == nil:
		for i := range entries {
			entries[i].TimesheetID = draft.ID
		}
		draft.ReplaceEntries(entries)
		draft.UpdatedAt = now
		if err := s.repo.Update(ctx, draft); err != nil {
			return nil, s.mapWriteError(err, "failed to save draft")
		}
	case errors.Is(err, sql.ErrNoRows):
		draft = s.newTimesheet(req.EmployeeID, period, now)
		draft.Status = models.StatusDraft
		for i := range entries {
			entries[i].TimesheetID = draft.ID
		}
		draft.ReplaceEntries(entries)
		if err := s.repo.Create(ctx, draft); err != nil {
			return nil, s.mapWriteError(err, "failed to create draft")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}

	return newTimesheetView(draft), nil
}

// Submit validates and submits the period's hours for approval. A Rejected
// timesheet for the same period is revised in place and resubmitted; any
// other live submission blocks with a conflict.
func (s *TimesheetService) Submit(ctx context.Context, claims *models.JWTClaims, req TimesheetEntryRequest) (*TimesheetView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if err := s.checkOwnership(claims, req.EmployeeID); err != nil {
		return nil, err
	}
	period, err := s.periods.Compute(req.PeriodType, req.Year, req.Month, req.WeekNumber)
	if err != nil {
		return nil, err
	}
	entries, err := s.buildEntries(req.EmployeeID, period, req.DailyHours)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, e := range entries {
		total += e.Hours
	}
	if total == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot submit a timesheet with zero total hours")
	}
	if total > maxTotalHours {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("total hours (%.2f) cannot exceed %d", total, maxTotalHours))
	}

	unlock := s.lockFor(periodLockKey(req.EmployeeID, period))
	defer unlock()

	live, err := s.repo.FindForPeriod(ctx, req.EmployeeID, req.PeriodType, req.Year, req.Month, req.WeekNumber,
		models.StatusSubmitted, models.StatusApprovedL1, models.StatusApprovedL2)
	if err == nil && live != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "timesheet for this period has already been submitted")
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submissions")
	}

	now := s.now()
	ts, err := s.repo.FindForPeriod(ctx, req.EmployeeID, req.PeriodType, req.Year, req.Month, req.WeekNumber,
		models.StatusRejected)
	switch {
	case err == nil:
		// A rejection is always revised in place. A draft saved after the
		// rejection is folded into the resubmission so the period never
		// carries a second row.
		draft, derr := s.repo.FindForPeriod(ctx, req.EmployeeID, req.PeriodType, req.Year, req.Month, req.WeekNumber,
			models.StatusDraft)
		switch {
		case derr == nil:
			if err := s.repo.Delete(ctx, draft.ID); err != nil {
				return nil, s.mapWriteError(err, "failed to fold draft into resubmission")
			}
		case !errors.Is(derr, sql.ErrNoRows):
			return nil, appErrors.Wrap(derr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
		}
	case errors.Is(err, sql.ErrNoRows):
		ts, err = s.repo.FindForPeriod(ctx, req.EmployeeID, req.PeriodType, req.Year, req.Month, req.WeekNumber,
			models.StatusDraft)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timesheet")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timesheet")
	}

	if ts != nil {
		for i := range entries {
			entries[i].TimesheetID = ts.ID
		}
		ts.ReplaceEntries(entries)
		s.markSubmitted(ts, now)
		if err := s.repo.Update(ctx, ts); err != nil {
			return nil, s.mapWriteError(err, "failed to submit timesheet")
		}
	} else {
		ts = s.newTimesheet(req.EmployeeID, period, now)
		for i := range entries {
			entries[i].TimesheetID = ts.ID
		}
		ts.ReplaceEntries(entries)
		s.markSubmitted(ts, now)
		if err := s.repo.Create(ctx, ts); err != nil {
			return nil, s.mapWriteError(err, "failed to submit timesheet")
		}
	}

	s.logAudit(ctx, claims, models.AuditActionTimesheetSubmit, ts.ID)
	s.observe("submitted")
	return newTimesheetView(ts), nil
}

// Approve records a level 1 or level 2 sign-off. Levels are strictly
// sequential: level 2 requires an existing level 1 approval.
func (s *TimesheetService) Approve(ctx context.Context, claims *models.JWTClaims, timesheetID string, level int, comment string) (*TimesheetView, error) {
	if err := s.checkApprover(claims); err != nil {
		return nil, err
	}
	if level != 1 && level != 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid approval level, must be 1 or 2")
	}

	unlock := s.lockFor(timesheetLockKey(timesheetID))
	defer unlock()

	ts, err := s.loadTimesheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	switch ts.Status {
	case models.StatusDraft:
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot approve a draft timesheet")
	case models.StatusRejected:
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejected timesheet must be resubmitted before approval")
	}

	now := s.now()
	switch level {
	case 1:
		if ts.ApprovalL1 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "timesheet already approved at level 1")
		}
		ts.ApprovalL1 = true
		if ts.ApprovedL1Date == nil {
			ts.ApprovedL1Date = &now
		}
	case 2:
		if !ts.ApprovalL1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "level 1 approval required before level 2 approval")
		}
		if ts.ApprovalL2 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "timesheet already approved at level 2")
		}
		ts.ApprovalL2 = true
		if ts.ApprovedL2Date == nil {
			ts.ApprovedL2Date = &now
		}
	}
	ts.Status = models.ApprovalStatus(ts.ApprovalL1, ts.ApprovalL2)
	if strings.TrimSpace(comment) != "" {
		ts.AppendComment(fmt.Sprintf("Level %d approval: %s", level, comment))
	}
	ts.UpdatedAt = now

	if err := s.repo.Update(ctx, ts); err != nil {
		return nil, s.mapWriteError(err, "failed to approve timesheet")
	}
	s.logAudit(ctx, claims, models.AuditActionTimesheetApprove, ts.ID)
	s.observe(fmt.Sprintf("approved_l%d", level))
	return newTimesheetView(ts), nil
}

// Reject bounces a submitted or level-1-approved timesheet back for
// revision. A reason is mandatory and is appended to the audit comments.
func (s *TimesheetService) Reject(ctx context.Context, claims *models.JWTClaims, timesheetID, reason string) (*TimesheetView, error) {
	if err := s.checkApprover(claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	unlock := s.lockFor(timesheetLockKey(timesheetID))
	defer unlock()

	ts, err := s.loadTimesheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	switch ts.Status {
	case models.StatusDraft:
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot reject a draft timesheet")
	case models.StatusApprovedL2:
		return nil, appErrors.Clone(appErrors.ErrValidation, "fully approved timesheet must be reopened before rejection")
	case models.StatusRejected:
		return nil, appErrors.Clone(appErrors.ErrConflict, "timesheet is already rejected")
	}

	now := s.now()
	ts.ApprovalL1 = false
	ts.ApprovalL2 = false
	ts.Status = models.StatusRejected
	ts.RejectedDate = &now
	ts.AppendComment("Rejected: " + reason)
	ts.UpdatedAt = now

	if err := s.repo.Update(ctx, ts); err != nil {
		return nil, s.mapWriteError(err, "failed to reject timesheet")
	}
	s.logAudit(ctx, claims, models.AuditActionTimesheetReject, ts.ID)
	s.observe("rejected")
	return newTimesheetView(ts), nil
}

// Reopen is an administrative override that returns any submitted, approved
// or rejected timesheet to an editable state without a formal rejection.
func (s *TimesheetService) Reopen(ctx context.Context, claims *models.JWTClaims, timesheetID string) (*TimesheetView, error) {
	if claims == nil || claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may reopen timesheets")
	}

	unlock := s.lockFor(timesheetLockKey(timesheetID))
	defer unlock()

	ts, err := s.loadTimesheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	if ts.Status == models.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrValidation, "draft timesheets do not need reopening")
	}

	now := s.now()
	ts.ApprovalL1 = false
	ts.ApprovalL2 = false
	ts.ApprovedL1Date = nil
	ts.ApprovedL2Date = nil
	ts.RejectedDate = nil
	ts.Status = models.StatusSubmitted
	ts.AppendComment(fmt.Sprintf("%s - %s", reopenComment, now.Format("2006-01-02 15:04")))
	ts.UpdatedAt = now

	if err := s.repo.Update(ctx, ts); err != nil {
		return nil, s.mapWriteError(err, "failed to reopen timesheet")
	}
	s.logAudit(ctx, claims, models.AuditActionTimesheetReopen, ts.ID)
	s.observe("reopened")
	return newTimesheetView(ts), nil
}

// DeleteDraft removes the employee's draft for the period along with its
// daily entries.
func (s *TimesheetService) DeleteDraft(ctx context.Context, claims *models.JWTClaims, periodType models.PeriodType, year, month int, weekNumber *int) error {
	if err := s.checkOwnership(claims, ""); err != nil {
		return err
	}
	period, err := s.periods.Compute(periodType, year, month, weekNumber)
	if err != nil {
		return err
	}
	employeeID := s.actingEmployeeID(claims)

	unlock := s.lockFor(periodLockKey(employeeID, period))
	defer unlock()

	draft, err := s.repo.FindForPeriod(ctx, employeeID, periodType, year, month, weekNumber, models.StatusDraft)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "draft timesheet not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	if err := s.repo.Delete(ctx, draft.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete draft")
	}
	return nil
}

// Get loads a timesheet by id. Employees may only read their own.
func (s *TimesheetService) Get(ctx context.Context, claims *models.JWTClaims, timesheetID string) (*TimesheetView, error) {
	ts, err := s.loadTimesheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	if claims != nil && claims.Role == models.RoleEmployee && claims.EmployeeID != ts.EmployeeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view your own timesheets")
	}
	return newTimesheetView(ts), nil
}

// ListSubmitted returns the employee's non-draft timesheets, newest first.
func (s *TimesheetService) ListSubmitted(ctx context.Context, claims *models.JWTClaims, year, month *int, page, pageSize int) ([]TimesheetView, *models.Pagination, error) {
	if err := s.checkOwnership(claims, ""); err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	filter := models.TimesheetFilter{
		EmployeeID: s.actingEmployeeID(claims),
		Year:       year,
		Month:      month,
		Statuses:   []models.TimesheetStatus{models.StatusSubmitted, models.StatusApprovedL1, models.StatusApprovedL2, models.StatusRejected},
		Page:       page,
		PageSize:   pageSize,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timesheets")
	}
	views := make([]TimesheetView, len(rows))
	for i := range rows {
		views[i] = *newTimesheetView(&rows[i])
	}
	return views, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// AttachFile stores supporting material for a timesheet and records the
// stored filename on the aggregate. Only PDF and image uploads are accepted.
func (s *TimesheetService) AttachFile(ctx context.Context, claims *models.JWTClaims, timesheetID string, req AttachmentRequest) (*AttachmentInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !s.mimeAllowed(req.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed, only PDF, JPG and PNG are supported")
	}
	data, err := base64.StdEncoding.DecodeString(req.Base64)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid base64 content")
	}
	if int64(len(data)) > s.config.MaxAttachmentBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attachment exceeds the maximum allowed size")
	}

	unlock := s.lockFor(timesheetLockKey(timesheetID))
	defer unlock()

	ts, err := s.loadTimesheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	if claims != nil && claims.Role == models.RoleEmployee && claims.EmployeeID != ts.EmployeeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only attach files to your own timesheets")
	}

	storedName := uuid.NewString() + filepath.Ext(req.FileName)
	relPath := filepath.Join(ts.EmployeeID, ts.ID, storedName)
	if s.store != nil {
		if _, err := s.store.Save(relPath, data); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
		}
	}

	now := s.now()
	account := "local"
	ts.FileName = &storedName
	ts.StorageAccount = &account
	ts.UpdatedAt = now
	if err := s.repo.Update(ctx, ts); err != nil {
		return nil, s.mapWriteError(err, "failed to record attachment")
	}

	info := &AttachmentInfo{
		FileName:    storedName,
		Size:        len(data),
		ContentType: req.ContentType,
	}
	if s.signer != nil {
		token, expires, err := s.signer.Generate(ts.ID, relPath)
		if err != nil {
			s.logger.Warn("failed to sign attachment url", zap.Error(err))
		} else {
			info.SignedURL = "/api/timesheets/attachments/" + token
			info.ExpiresAt = expires
		}
	}
	return info, nil
}

func (s *TimesheetService) newTimesheet(employeeID string, period *models.Period, now time.Time) *models.Timesheet {
	return &models.Timesheet{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		PeriodType: period.Type,
		Year:       period.Year,
		Month:      period.Month,
		WeekNumber: period.WeekNumber,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		Status:     models.StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// markSubmitted moves the aggregate to Submitted, clearing approval state so
// resubmission after rejection starts the chain over.
func (s *TimesheetService) markSubmitted(ts *models.Timesheet, now time.Time) {
	ts.Status = models.StatusSubmitted
	ts.ApprovalL1 = false
	ts.ApprovalL2 = false
	ts.ApprovedL1Date = nil
	ts.ApprovedL2Date = nil
	ts.RejectedDate = nil
	ts.SubmittedDate = &now
	ts.UpdatedAt = now
}

func (s *TimesheetService) buildEntries(employeeID string, period *models.Period, inputs []DailyHoursInput) ([]models.TimesheetEntry, error) {
	seen := make(map[string]struct{}, len(inputs))
	entries := make([]models.TimesheetEntry, 0, len(inputs))
	for _, in := range inputs {
		date, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", in.Date))
		}
		date = models.DateOnly(date)
		if in.Hours < 0 || in.Hours > 24 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid hours for %s: %.2f, hours must be between 0 and 24", in.Date, in.Hours))
		}
		if !period.Contains(date) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date %s falls outside the period bounds", in.Date))
		}
		key := date.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate entry for date %s", in.Date))
		}
		seen[key] = struct{}{}
		entries = append(entries, models.TimesheetEntry{
			ID:         uuid.NewString(),
			EmployeeID: employeeID,
			Date:       date,
			Hours:      in.Hours,
		})
	}
	return entries, nil
}

func (s *TimesheetService) loadTimesheet(ctx context.Context, id string) (*models.Timesheet, error) {
	ts, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timesheet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timesheet")
	}
	return ts, nil
}

// checkOwnership ensures employees only act on their own timesheets. When
// targetEmployeeID is empty, the check only requires the caller to have an
// employee identity (or elevated role).
func (s *TimesheetService) checkOwnership(claims *models.JWTClaims, targetEmployeeID string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing credentials")
	}
	if claims.Role == models.RoleEmployee {
		if claims.EmployeeID == "" {
			return appErrors.Clone(appErrors.ErrForbidden, "no employee record linked to this account")
		}
		if targetEmployeeID != "" && targetEmployeeID != claims.EmployeeID {
			return appErrors.Clone(appErrors.ErrForbidden, "you may only manage your own timesheets")
		}
	}
	return nil
}

func (s *TimesheetService) checkApprover(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing credentials")
	}
	if !claims.Role.CanApprove() {
		return appErrors.Clone(appErrors.ErrForbidden, "approver role required")
	}
	return nil
}

// actingEmployeeID resolves which employee's data the call targets: the
// caller's own record for EMP users, otherwise whatever the elevated caller
// supplied via claims.
func (s *TimesheetService) actingEmployeeID(claims *models.JWTClaims) string {
	if claims == nil {
		return ""
	}
	return claims.EmployeeID
}

func (s *TimesheetService) mapWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrStaleTimesheet) {
		return appErrors.Clone(appErrors.ErrConflict, "timesheet was modified concurrently, reload and retry")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *TimesheetService) lockFor(key string) func() {
	value, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *TimesheetService) logAudit(ctx context.Context, claims *models.JWTClaims, action, timesheetID string) {
	if s.audit == nil || claims == nil {
		return
	}
	userID := claims.UserID
	log := &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     action,
		Resource:   "timesheet",
		ResourceID: &timesheetID,
		CreatedAt:  s.now(),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *TimesheetService) observe(event string) {
	if s.metrics != nil {
		s.metrics.ObserveTimesheetEvent(event)
	}
}

func (s *TimesheetService) mimeAllowed(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range s.config.AllowedAttachmentMIMEs {
		if ct == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func periodLockKey(employeeID string, period *models.Period) string {
	week := 0
	if period.WeekNumber != nil {
		week = *period.WeekNumber
	}
	return fmt.Sprintf("period|%s|%s|%d|%d|%d", employeeID, period.Type, period.Year, period.Month, week)
}

func timesheetLockKey(id string) string {
	return "timesheet|" + id
}
