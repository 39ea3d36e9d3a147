package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya/vidyalaya-api/pkg/response"
)

// FeeHandler exposes fee structure and fee instance endpoints.
type FeeHandler struct {
	fees     *service.FeeService
	sessions *service.SessionService
	reports  *service.ReportService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService, sessions *service.SessionService, reports *service.ReportService) *FeeHandler {
	return &FeeHandler{fees: fees, sessions: sessions, reports: reports}
}

// ListStructures godoc
// @Summary List fee structures for a session
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Session (defaults to current)"
// @Param active query bool false "Only active structures"
// @Success 200 {object} response.Envelope
// @Router /fees/structures [get]
func (h *FeeHandler) ListStructures(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	activeOnly := false
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			activeOnly = val
		}
	}
	structures, err := h.fees.ListStructures(c.Request.Context(), schoolFromContext(c), sessionID, activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structures, nil)
}

// GetStructure godoc
// @Summary Get a fee structure
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee structure ID"
// @Success 200 {object} response.Envelope
// @Router /fees/structures/{id} [get]
func (h *FeeHandler) GetStructure(c *gin.Context) {
	structure, err := h.fees.GetStructure(c.Request.Context(), schoolFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// CreateStructure godoc
// @Summary Create a fee structure
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Session (defaults to current)"
// @Param payload body service.CreateFeeStructureRequest true "Fee structure payload"
// @Success 201 {object} response.Envelope
// @Router /fees/structures [post]
func (h *FeeHandler) CreateStructure(c *gin.Context) {
	var req service.CreateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	structure, err := h.fees.CreateStructure(c.Request.Context(), schoolFromContext(c), sessionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, structure)
}

// UpdateStructure godoc
// @Summary Update a fee structure
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee structure ID"
// @Param payload body service.UpdateFeeStructureRequest true "Fee structure payload"
// @Success 200 {object} response.Envelope
// @Router /fees/structures/{id} [put]
func (h *FeeHandler) UpdateStructure(c *gin.Context) {
	var req service.UpdateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.fees.UpdateStructure(c.Request.Context(), schoolFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// DeleteStructure godoc
// @Summary Delete a fee structure without assignments
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee structure ID"
// @Success 204
// @Router /fees/structures/{id} [delete]
func (h *FeeHandler) DeleteStructure(c *gin.Context) {
	if err := h.fees.DeleteStructure(c.Request.Context(), schoolFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Assign a fee structure to all applicable students
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee structure ID"
// @Param payload body service.AssignFeeRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /fees/structures/{id}/assign [post]
func (h *FeeHandler) Assign(c *gin.Context) {
	var req service.AssignFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.fees.Assign(c.Request.Context(), schoolFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.reports != nil {
		h.reports.InvalidateSchool(c.Request.Context(), schoolFromContext(c))
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkAssign godoc
// @Summary Assign several fee structures in one call
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkAssignFeeRequest true "Bulk assignment payload"
// @Success 200 {object} response.Envelope
// @Router /fees/assign [post]
func (h *FeeHandler) BulkAssign(c *gin.Context) {
	var req service.BulkAssignFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.fees.BulkAssign(c.Request.Context(), schoolFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.reports != nil {
		h.reports.InvalidateSchool(c.Request.Context(), schoolFromContext(c))
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List fee instances
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Session filter"
// @Param student_id query string false "Student filter"
// @Param class_id query string false "Class filter"
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	filter, err := h.feeFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	fees, pagination, err := h.fees.ListFees(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// StudentLedger godoc
// @Summary List a student's fee instances for a session
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/fees [get]
func (h *FeeHandler) StudentLedger(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	fees, err := h.fees.StudentLedger(c.Request.Context(), c.Param("id"), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

func (h *FeeHandler) feeFilterFromQuery(c *gin.Context) (models.StudentFeeFilter, error) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		return models.StudentFeeFilter{}, err
	}
	filter := models.StudentFeeFilter{
		SchoolID:  schoolFromContext(c),
		SessionID: sessionID,
		StudentID: c.Query("student_id"),
		ClassID:   c.Query("class_id"),
	}
	if status := c.Query("status"); status != "" {
		feeStatus := models.FeeStatus(status)
		filter.Status = &feeStatus
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	return filter, nil
}
