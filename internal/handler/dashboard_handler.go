package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cnportal/cn-portal-api/internal/middleware"
	"github.com/cnportal/cn-portal-api/internal/models"
	"github.com/cnportal/cn-portal-api/internal/service"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
	"github.com/cnportal/cn-portal-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context) (*service.AdminDashboard, bool, error)
	PendingQueue(ctx context.Context, limit int) ([]models.PendingTimesheetRow, error)
}

// DashboardHandler wires the admin overview to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// PendingQueue godoc
// @Summary Timesheets awaiting approval
// @Tags Dashboard
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /dashboard/pending [get]
func (h *DashboardHandler) PendingQueue(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	rows, err := h.service.PendingQueue(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}
