package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
	"github.com/vidyalaya/vidyalaya-api/pkg/response"
)

// ReportHandler exposes aggregated reporting endpoints.
type ReportHandler struct {
	reports  *service.ReportService
	sessions *service.SessionService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService, sessions *service.SessionService) *ReportHandler {
	return &ReportHandler{reports: reports, sessions: sessions}
}

// FeeStatistics godoc
// @Summary Session-wide fee statistics
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /reports/fees/statistics [get]
func (h *ReportHandler) FeeStatistics(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.reports.FeeStatistics(c.Request.Context(), schoolFromContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// DailyCollection godoc
// @Summary Daily fee collection totals
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window length in days (default 7)"
// @Success 200 {object} response.Envelope
// @Router /reports/fees/collection/daily [get]
func (h *ReportHandler) DailyCollection(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	points, err := h.reports.DailyCollection(c.Request.Context(), schoolFromContext(c), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// MonthlyCollection godoc
// @Summary Monthly fee collection across the session
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /reports/fees/collection/monthly [get]
func (h *ReportHandler) MonthlyCollection(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	collection, err := h.reports.MonthlyCollection(c.Request.Context(), schoolFromContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection, nil)
}

// PaymentMethods godoc
// @Summary Payment method distribution
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window length in days (default 30)"
// @Success 200 {object} response.Envelope
// @Router /reports/fees/payment-methods [get]
func (h *ReportHandler) PaymentMethods(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	slices, err := h.reports.PaymentMethodDistribution(c.Request.Context(), schoolFromContext(c), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slices, nil)
}

// ClassCollections godoc
// @Summary Per-class fee collection rates
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /reports/fees/classes [get]
func (h *ReportHandler) ClassCollections(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	rates, err := h.reports.ClassCollectionRates(c.Request.Context(), schoolFromContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// ClassAttendance godoc
// @Summary Class attendance statistics for a window
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param range query string false "Window: week, month or year (default week)"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/classes/{id} [get]
func (h *ReportHandler) ClassAttendance(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	dateRange := models.DateRange(c.DefaultQuery("range", string(models.RangeWeek)))
	stats, err := h.reports.ClassAttendanceStats(c.Request.Context(), schoolFromContext(c), c.Param("id"), sessionID, dateRange)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// StudentAttendance godoc
// @Summary Student attendance statistics for the current month
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/students/{id} [get]
func (h *ReportHandler) StudentAttendance(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.reports.StudentAttendanceStats(c.Request.Context(), c.Param("id"), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// AttendanceTrends godoc
// @Summary Daily attendance rate trend for a class
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param days query int false "Window length in days (default 7)"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/classes/{id}/trends [get]
func (h *ReportHandler) AttendanceTrends(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	days, _ := strconv.Atoi(c.Query("days"))
	trends, err := h.reports.AttendanceTrends(c.Request.Context(), schoolFromContext(c), c.Param("id"), sessionID, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trends, nil)
}
