package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/service"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya/vidyalaya-api/pkg/response"
)

// DiscountHandler exposes fee discount endpoints.
type DiscountHandler struct {
	discounts *service.DiscountService
	sessions  *service.SessionService
	reports   *service.ReportService
}

// NewDiscountHandler constructs DiscountHandler.
func NewDiscountHandler(discounts *service.DiscountService, sessions *service.SessionService, reports *service.ReportService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts, sessions: sessions, reports: reports}
}

// Apply godoc
// @Summary Grant a discount and apply it to unpaid fees in the session
// @Tags Discounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Session (defaults to current)"
// @Param payload body service.ApplyDiscountRequest true "Discount payload"
// @Success 201 {object} response.Envelope
// @Router /discounts [post]
func (h *DiscountHandler) Apply(c *gin.Context) {
	var req service.ApplyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sessionID, err := sessionIDFromRequest(c, h.sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.discounts.Apply(c.Request.Context(), userIDFromContext(c), sessionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.reports != nil {
		h.reports.InvalidateSchool(c.Request.Context(), schoolFromContext(c))
	}
	response.Created(c, result)
}

// ListByStudent godoc
// @Summary List a student's discounts
// @Tags Discounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/discounts [get]
func (h *DiscountHandler) ListByStudent(c *gin.Context) {
	discounts, err := h.discounts.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discounts, nil)
}

// Revoke godoc
// @Summary Revoke a discount
// @Tags Discounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Discount ID"
// @Success 204
// @Router /discounts/{id} [delete]
func (h *DiscountHandler) Revoke(c *gin.Context) {
	if err := h.discounts.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	if h.reports != nil {
		h.reports.InvalidateSchool(c.Request.Context(), schoolFromContext(c))
	}
	response.NoContent(c)
}
