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

// PaymentHandler exposes payment, fine and ledger endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	metrics  *service.MetricsService
	reports  *service.ReportService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, metrics *service.MetricsService, reports *service.ReportService) *PaymentHandler {
	return &PaymentHandler{payments: payments, metrics: metrics, reports: reports}
}

// RecordPayment godoc
// @Summary Record a payment against a fee instance
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student fee ID"
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /fees/{id}/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	receipt, err := h.payments.RecordPayment(c.Request.Context(), c.Param("id"), userIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordPayment(req.Amount)
	}
	if h.reports != nil {
		h.reports.InvalidateSchool(c.Request.Context(), schoolFromContext(c))
	}
	response.Created(c, receipt)
}

// RecordFine godoc
// @Summary Add a fine to a fee instance
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student fee ID"
// @Param payload body service.RecordFineRequest true "Fine payload"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/fines [post]
func (h *PaymentHandler) RecordFine(c *gin.Context) {
	var req service.RecordFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.payments.RecordFine(c.Request.Context(), c.Param("id"), userIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.reports != nil {
		h.reports.InvalidateSchool(c.Request.Context(), schoolFromContext(c))
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Receipt godoc
// @Summary Look up a transaction by receipt number
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param receiptNumber path string true "Receipt number"
// @Success 200 {object} response.Envelope
// @Router /payments/receipts/{receiptNumber} [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	txn, err := h.payments.Receipt(c.Request.Context(), c.Param("receiptNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txn, nil)
}

// Transactions godoc
// @Summary List ledger transactions
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student filter"
// @Param type query string false "Transaction type filter"
// @Param status query string false "Transaction status filter"
// @Param date_from query string false "From date (2006-01-02)"
// @Param date_to query string false "To date (2006-01-02)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments/transactions [get]
func (h *PaymentHandler) Transactions(c *gin.Context) {
	filter := models.FeeTransactionFilter{
		SchoolID:  schoolFromContext(c),
		StudentID: c.Query("student_id"),
	}
	if txnType := c.Query("type"); txnType != "" {
		val := models.TransactionType(txnType)
		filter.Type = &val
	}
	if status := c.Query("status"); status != "" {
		val := models.TransactionStatus(status)
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

	txns, pagination, err := h.payments.Transactions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, pagination)
}

// FeeHistory godoc
// @Summary List ledger entries for a fee instance
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/transactions [get]
func (h *PaymentHandler) FeeHistory(c *gin.Context) {
	txns, err := h.payments.FeeHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, nil)
}
