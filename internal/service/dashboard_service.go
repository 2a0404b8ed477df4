package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
)

type timesheetStatsRepository interface {
	CountByStatus(ctx context.Context) (map[models.TimesheetStatus]int, error)
	ListPending(ctx context.Context, limit int) ([]models.PendingTimesheetRow, error)
	SumHoursForRange(ctx context.Context, from, to time.Time) (float64, error)
}

type employeeStatsRepository interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type systemMetricsProvider interface {
	Snapshot() models.SystemMetrics
}

// AdminDashboard is the admin landing-page payload.
type AdminDashboard struct {
	Timesheets        map[models.TimesheetStatus]int `json:"timesheets"`
	PendingApprovals  int                            `json:"pending_approvals"`
	PendingQueue      []models.PendingTimesheetRow   `json:"pending_queue"`
	ActiveEmployees   int                            `json:"active_employees"`
	InactiveEmployees int                            `json:"inactive_employees"`
	ApprovedHoursMTD  float64                        `json:"approved_hours_mtd"`
	System            models.SystemMetrics           `json:"system"`
	GeneratedAt       time.Time                      `json:"generated_at"`
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL          time.Duration
	PendingQueueLimit int
}

// DashboardService composes the admin overview from the timesheet and
// employee repositories, with a short-lived Redis cache in front.
type DashboardService struct {
	timesheets timesheetStatsRepository
	employees  employeeStatsRepository
	metrics    systemMetricsProvider
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Timesheets timesheetStatsRepository
	Employees  employeeStatsRepository
	Metrics    systemMetricsProvider
	Cache      *CacheService
	Logger     *zap.Logger
	Config     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.PendingQueueLimit <= 0 {
		cfg.PendingQueueLimit = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		timesheets: params.Timesheets,
		employees:  params.Employees,
		metrics:    params.Metrics,
		cache:      params.Cache,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Admin returns the admin dashboard and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context) (*AdminDashboard, bool, error) {
	const cacheKey = "dash:admin"
	if s.cache != nil {
		var cached AdminDashboard
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	dashboard, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return dashboard, false, nil
}

// PendingQueue returns timesheets awaiting approval without caching, for
// the approval worklist view.
func (s *DashboardService) PendingQueue(ctx context.Context, limit int) ([]models.PendingTimesheetRow, error) {
	if limit <= 0 {
		limit = s.cfg.PendingQueueLimit
	}
	rows, err := s.timesheets.ListPending(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending timesheets")
	}
	return rows, nil
}

// Invalidate drops the cached dashboard, called after workflow mutations.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context) (*AdminDashboard, error) {
	statusCounts, err := s.timesheets.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count timesheets")
	}
	queue, err := s.timesheets.ListPending(ctx, s.cfg.PendingQueueLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending timesheets")
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	approvedHours, err := s.timesheets.SumHoursForRange(ctx, monthStart, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total approved hours")
	}

	dashboard := &AdminDashboard{
		Timesheets:       statusCounts,
		PendingApprovals: statusCounts[models.StatusSubmitted] + statusCounts[models.StatusApprovedL1],
		PendingQueue:     queue,
		ApprovedHoursMTD: approvedHours,
		GeneratedAt:      now,
	}

	if s.employees != nil {
		employeeCounts, err := s.employees.CountByStatus(ctx)
		if err != nil {
			s.logger.Warn("employee counts unavailable", zap.Error(err))
		} else {
			dashboard.ActiveEmployees = employeeCounts[models.EmployeeStatusActive]
			dashboard.InactiveEmployees = employeeCounts[models.EmployeeStatusInactive]
		}
	}
	if s.metrics != nil {
		dashboard.System = s.metrics.Snapshot()
	}
	return dashboard, nil
}
