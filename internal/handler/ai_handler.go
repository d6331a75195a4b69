package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/service"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
	"github.com/sheriapal/sheriapal-api/pkg/response"
)

// AIHandler exposes the AI query and drafting endpoints.
type AIHandler struct {
	service *service.AIService
}

// NewAIHandler creates a new handler.
func NewAIHandler(svc *service.AIService) *AIHandler {
	return &AIHandler{service: svc}
}

// Query godoc
// @Summary Ask a legal question
// @Description Answer grounded on approved documents when possible
// @Tags AI
// @Accept json
// @Produce json
// @Param payload body models.QueryRequest true "Question"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ai/query [post]
// @Security BearerAuth
func (h *AIHandler) Query(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "question is required"))
		return
	}

	res, err := h.service.Query(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Draft godoc
// @Summary Draft a legal document
// @Tags AI
// @Accept json
// @Produce json
// @Param payload body models.DraftRequest true "Template and inputs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ai/draft [post]
// @Security BearerAuth
func (h *AIHandler) Draft(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "template_id is required"))
		return
	}

	res, err := h.service.Draft(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Templates godoc
// @Summary List drafting templates
// @Tags AI
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ai/templates [get]
// @Security BearerAuth
func (h *AIHandler) Templates(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Templates(), nil)
}
