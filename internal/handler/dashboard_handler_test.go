package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/cnportal/cn-portal-api/internal/models"
	"github.com/cnportal/cn-portal-api/internal/service"
)

type fakeDashboardSrv struct {
	adminResp *service.AdminDashboard
	adminErr  error
	adminHit  bool
	pending   []models.PendingTimesheetRow
	lastLimit int
}

func (f *fakeDashboardSrv) Admin(context.Context) (*service.AdminDashboard, bool, error) {
	return f.adminResp, f.adminHit, f.adminErr
}

func (f *fakeDashboardSrv) PendingQueue(_ context.Context, limit int) ([]models.PendingTimesheetRow, error) {
	f.lastLimit = limit
	return f.pending, nil
}

func TestDashboardHandlerAdminSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		adminResp: &service.AdminDashboard{PendingApprovals: 4},
		adminHit:  true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(4), envelope.Data["pending_approvals"])
}

func TestDashboardHandlerPendingQueuePassesLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{pending: []models.PendingTimesheetRow{{ID: "ts-1"}}}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/pending?limit=5", nil)

	handler.PendingQueue(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, srv.lastLimit)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
