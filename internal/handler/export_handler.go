package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya/vidyalaya-api/pkg/response"
)

// ExportHandler exposes CSV and PDF download endpoints.
type ExportHandler struct {
	exports  *service.ExportService
	sessions *service.SessionService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService, sessions *service.SessionService) *ExportHandler {
	return &ExportHandler{exports: exports, sessions: sessions}
}

// FeeReportCSV godoc
// @Summary Download the fee listing as CSV
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Param session_id query string false "Session (defaults to current)"
// @Param student_id query string false "Student filter"
// @Param class_id query string false "Class filter"
// @Param status query string false "Status filter"
// @Success 200 {file} file
// @Router /exports/fees [get]
func (h *ExportHandler) FeeReportCSV(c *gin.Context) {
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.StudentFeeFilter{
		SchoolID:  schoolFromContext(c),
		SessionID: sessionID,
		StudentID: c.Query("student_id"),
		ClassID:   c.Query("class_id"),
	}
	if status := c.Query("status"); status != "" {
		val := models.FeeStatus(status)
		filter.Status = &val
	}
	data, err := h.exports.FeeReportCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("fees-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// AttendanceSheetCSV godoc
// @Summary Download a class day attendance sheet as CSV
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param date query string true "Date (2006-01-02)"
// @Param session_id query string false "Session (defaults to current)"
// @Success 200 {file} file
// @Router /exports/classes/{id}/attendance [get]
func (h *ExportHandler) AttendanceSheetCSV(c *gin.Context) {
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
	data, err := h.exports.AttendanceSheetCSV(c.Request.Context(), c.Param("id"), sessionID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("attendance-%s.csv", date.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// ReceiptPDF godoc
// @Summary Download a payment receipt as PDF
// @Tags Exports
// @Produce application/pdf
// @Security BearerAuth
// @Param receiptNumber path string true "Receipt number"
// @Success 200 {file} file
// @Router /exports/receipts/{receiptNumber} [get]
func (h *ExportHandler) ReceiptPDF(c *gin.Context) {
	job, err := h.exports.ReceiptJobFor(c.Request.Context(), schoolFromContext(c), c.Param("receiptNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.exports.RenderReceipt(*job)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ReceiptNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", data)
}

// QueueReceiptPDF godoc
// @Summary Queue asynchronous rendering of a payment receipt PDF
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param receiptNumber path string true "Receipt number"
// @Success 202 {object} response.Envelope
// @Router /exports/receipts/{receiptNumber}/queue [post]
func (h *ExportHandler) QueueReceiptPDF(c *gin.Context) {
	job, err := h.exports.ReceiptJobFor(c.Request.Context(), schoolFromContext(c), c.Param("receiptNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.exports.QueueReceipt(*job); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true, "receipt_number": job.ReceiptNumber}, nil)
}
