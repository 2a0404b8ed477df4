package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cnportal/cn-portal-api/internal/models"
	"github.com/cnportal/cn-portal-api/internal/service"
	appErrors "github.com/cnportal/cn-portal-api/pkg/errors"
	"github.com/cnportal/cn-portal-api/pkg/response"
)

// TimesheetHandler exposes the timesheet lifecycle endpoints.
type TimesheetHandler struct {
	service *service.TimesheetService
}

// NewTimesheetHandler creates a new handler.
func NewTimesheetHandler(svc *service.TimesheetService) *TimesheetHandler {
	return &TimesheetHandler{service: svc}
}

// periodQuery reads the period selector shared by several endpoints.
func periodQuery(c *gin.Context) (models.PeriodType, int, int, *int, error) {
	periodType := models.PeriodType(c.Query("period_type"))
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		return "", 0, 0, nil, appErrors.Clone(appErrors.ErrValidation, "year is required")
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		return "", 0, 0, nil, appErrors.Clone(appErrors.ErrValidation, "month is required")
	}
	var weekNumber *int
	if raw := c.Query("week_number"); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, 0, nil, appErrors.Clone(appErrors.ErrValidation, "week_number must be a number")
		}
		weekNumber = &week
	}
	return periodType, year, month, weekNumber, nil
}

// PeriodInfo godoc
// @Summary Compute period boundaries
// @Description Returns start/end dates and day metadata for a reporting period
// @Tags Timesheets
// @Produce json
// @Param period_type query string true "WEEKLY, BIWEEKLY or MONTHLY"
// @Param year query int true "Year"
// @Param month query int true "Month"
// @Param week_number query int false "Week number within the month"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timesheets/period-info [get]
func (h *TimesheetHandler) PeriodInfo(c *gin.Context) {
	periodType, year, month, weekNumber, err := periodQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	period, err := h.service.PeriodInfo(periodType, year, month, weekNumber)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, period, nil)
}

// AutoFill godoc
// @Summary Prefill daily hours
// @Description Generates a daily-hours template for a period
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param payload body service.AutoFillRequest true "Auto-fill payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timesheets/auto-fill [post]
func (h *TimesheetHandler) AutoFill(c *gin.Context) {
	var req service.AutoFillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	days, err := h.service.AutoFill(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, days, nil)
}

// GetDraft godoc
// @Summary Get draft timesheet
// @Description Returns the caller's draft for the selected period
// @Tags Timesheets
// @Produce json
// @Param period_type query string true "Period type"
// @Param year query int true "Year"
// @Param month query int true "Month"
// @Param week_number query int false "Week number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timesheets/draft [get]
func (h *TimesheetHandler) GetDraft(c *gin.Context) {
	periodType, year, month, weekNumber, err := periodQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.service.GetDraft(c.Request.Context(), claimsFromContext(c), periodType, year, month, weekNumber)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// SaveDraft godoc
// @Summary Save draft timesheet
// @Description Creates or replaces the draft for the period
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param payload body service.TimesheetEntryRequest true "Draft payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timesheets/draft [put]
func (h *TimesheetHandler) SaveDraft(c *gin.Context) {
	var req service.TimesheetEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	view, err := h.service.SaveDraft(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// DeleteDraft godoc
// @Summary Delete draft timesheet
// @Description Removes the draft for the selected period
// @Tags Timesheets
// @Produce json
// @Param period_type query string true "Period type"
// @Param year query int true "Year"
// @Param month query int true "Month"
// @Param week_number query int false "Week number"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timesheets/draft [delete]
func (h *TimesheetHandler) DeleteDraft(c *gin.Context) {
	periodType, year, month, weekNumber, err := periodQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.DeleteDraft(c.Request.Context(), claimsFromContext(c), periodType, year, month, weekNumber); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Submit godoc
// @Summary Submit timesheet
// @Description Submits hours for approval, or resubmits after rejection
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param payload body service.TimesheetEntryRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/submit [post]
func (h *TimesheetHandler) Submit(c *gin.Context) {
	var req service.TimesheetEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	view, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// List godoc
// @Summary List submitted timesheets
// @Description Lists timesheets in the approval pipeline; employees see their own
// @Tags Timesheets
// @Produce json
// @Param year query int false "Year filter"
// @Param month query int false "Month filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timesheets [get]
func (h *TimesheetHandler) List(c *gin.Context) {
	var year, month *int
	if raw := c.Query("year"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			year = &v
		}
	}
	if raw := c.Query("month"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			month = &v
		}
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	views, pagination, err := h.service.ListSubmitted(c.Request.Context(), claimsFromContext(c), year, month, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, views, pagination)
}

// Get godoc
// @Summary Get timesheet
// @Description Returns one timesheet with its daily hours
// @Tags Timesheets
// @Produce json
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timesheets/{id} [get]
func (h *TimesheetHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// Approve godoc
// @Summary Approve timesheet
// @Description Records a level 1 or level 2 approval
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param id path string true "Timesheet ID"
// @Param payload body object true "Approval payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/approve [post]
func (h *TimesheetHandler) Approve(c *gin.Context) {
	var payload struct {
		Level   int    `json:"level" binding:"required"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "approval level required"))
		return
	}

	view, err := h.service.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"), payload.Level, payload.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// Reject godoc
// @Summary Reject timesheet
// @Description Rejects a submitted timesheet with a mandatory reason
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param id path string true "Timesheet ID"
// @Param payload body object true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timesheets/{id}/reject [post]
func (h *TimesheetHandler) Reject(c *gin.Context) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	view, err := h.service.Reject(c.Request.Context(), claimsFromContext(c), c.Param("id"), payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// Reopen godoc
// @Summary Reopen timesheet
// @Description Admin-only reset of a finalized timesheet back to submitted
// @Tags Timesheets
// @Produce json
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /timesheets/{id}/reopen [post]
func (h *TimesheetHandler) Reopen(c *gin.Context) {
	view, err := h.service.Reopen(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// Attach godoc
// @Summary Attach supporting file
// @Description Stores a base64-encoded attachment and returns a signed URL
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param id path string true "Timesheet ID"
// @Param payload body service.AttachmentRequest true "Attachment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timesheets/{id}/attachments [post]
func (h *TimesheetHandler) Attach(c *gin.Context) {
	var req service.AttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	info, err := h.service.AttachFile(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, info)
}
