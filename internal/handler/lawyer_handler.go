package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheriapal/sheriapal-api/internal/service"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
	"github.com/sheriapal/sheriapal-api/pkg/response"
)

// LawyerHandler exposes the admin review queue for lawyer accounts.
type LawyerHandler struct {
	service *service.LawyerService
}

// NewLawyerHandler creates a new handler.
func NewLawyerHandler(svc *service.LawyerService) *LawyerHandler {
	return &LawyerHandler{service: svc}
}

// ListPending godoc
// @Summary Pending lawyer queue
// @Description Lawyer accounts awaiting review, oldest request first
// @Tags Lawyers
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/lawyers/pending [get]
// @Security BearerAuth
func (h *LawyerHandler) ListPending(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	lawyers, err := h.service.ListPending(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lawyers, nil)
}

// Approve godoc
// @Summary Approve lawyer
// @Description Idempotently approve a pending lawyer account
// @Tags Lawyers
// @Produce json
// @Param id path string true "Lawyer ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/lawyers/{id}/approve [post]
// @Security BearerAuth
func (h *LawyerHandler) Approve(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	lawyer, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lawyer, nil)
}

// Decline godoc
// @Summary Decline lawyer
// @Description Permanently remove a lawyer from the pending queue with a reason
// @Tags Lawyers
// @Accept json
// @Produce json
// @Param id path string true "Lawyer ID"
// @Param payload body object true "Decline reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/lawyers/{id}/decline [post]
// @Security BearerAuth
func (h *LawyerHandler) Decline(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decline payload"))
		return
	}

	lawyer, err := h.service.Decline(c.Request.Context(), actor, c.Param("id"), payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lawyer, nil)
}
