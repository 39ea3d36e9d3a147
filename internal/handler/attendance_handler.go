package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya/vidyalaya-api/pkg/response"
)

// AttendanceHandler exposes attendance register endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	sessions   *service.SessionService
	metrics    *service.MetricsService
	reports    *service.ReportService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, sessions *service.SessionService, metrics *service.MetricsService, reports *service.ReportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, sessions: sessions, metrics: metrics, reports: reports}
}

// Take godoc
// @Summary Mark attendance for a class day
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param session_id query string false "Session (defaults to current)"
// @Param payload body service.TakeAttendanceRequest true "Attendance entries"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance [post]
func (h *AttendanceHandler) Take(c *gin.Context) {
	var req service.TakeAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.attendance.Take(c.Request.Context(), schoolFromContext(c), c.Param("id"), sessionID, userIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordAttendanceMarks(result.Marked)
	}
	if h.reports != nil {
		h.reports.InvalidateSchool(c.Request.Context(), schoolFromContext(c))
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ForDate godoc
// @Summary Get a class attendance sheet for a day
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param date query string true "Date (2006-01-02)"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance [get]
func (h *AttendanceHandler) ForDate(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted 2006-01-02"))
		return
	}
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.attendance.ForDate(c.Request.Context(), c.Param("id"), sessionID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param class_id query string false "Class filter"
// @Param student_id query string false "Student filter"
// @Param status query string false "Status filter"
// @Param date_from query string false "From date (2006-01-02)"
// @Param date_to query string false "To date (2006-01-02)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.AttendanceFilter{
		ClassID:   c.Query("class_id"),
		SessionID: sessionID,
		StudentID: c.Query("student_id"),
	}
	if status := c.Query("status"); status != "" {
		val := models.AttendanceStatus(status)
		filter.Status = &val
	}
	if from := c.Query("date_from"); from != "" {
		if val, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &val
		}
	}
	if to := c.Query("date_to"); to != "" {
		if val, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	records, pagination, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Summary godoc
// @Summary Get a student's monthly attendance rollup
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param class_id query string true "Class ID"
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12"))
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required"))
		return
	}
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.attendance.Summary(c.Request.Context(), c.Param("id"), c.Query("class_id"), sessionID, month, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// StudentSummaries godoc
// @Summary List a student's monthly attendance rollups for a session
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentSummaries(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	summaries, err := h.attendance.StudentSummaries(c.Request.Context(), c.Param("id"), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}
