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

// CandidateHandler handles staffing pipeline endpoints.
type CandidateHandler struct {
	service *service.CandidateService
}

// NewCandidateHandler creates a new candidate handler.
func NewCandidateHandler(svc *service.CandidateService) *CandidateHandler {
	return &CandidateHandler{service: svc}
}

// List godoc
// @Summary List candidates
// @Description List candidates with pagination and filtering
// @Tags Candidates
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param employer_id query string false "Employer filter"
// @Param status query string false "Status filter"
// @Param client_name query string false "Client filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /candidates [get]
func (h *CandidateHandler) List(c *gin.Context) {
	var filter models.CandidateFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.EmployerID = c.Query("employer_id")
	filter.Status = c.Query("status")
	filter.ClientName = c.Query("client_name")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	candidates, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, candidates, pagination)
}

// Get godoc
// @Summary Get candidate
// @Description Get candidate detail
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /candidates/{id} [get]
func (h *CandidateHandler) Get(c *gin.Context) {
	candidate, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, candidate, nil)
}

// Create godoc
// @Summary Create candidate
// @Description Add a candidate to the staffing pipeline
// @Tags Candidates
// @Accept json
// @Produce json
// @Param payload body service.CandidateRequest true "Candidate payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /candidates [post]
func (h *CandidateHandler) Create(c *gin.Context) {
	var req service.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	candidate, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, candidate)
}

// Update godoc
// @Summary Update candidate
// @Description Update candidate details
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body service.CandidateRequest true "Candidate payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /candidates/{id} [put]
func (h *CandidateHandler) Update(c *gin.Context) {
	var req service.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	candidate, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, candidate, nil)
}

// Delete godoc
// @Summary Delete candidate
// @Description Remove a candidate from the pipeline
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /candidates/{id} [delete]
func (h *CandidateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
