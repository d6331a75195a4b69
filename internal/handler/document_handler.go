package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/service"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
	"github.com/sheriapal/sheriapal-api/pkg/response"
)

// DocumentHandler wires HTTP endpoints to the document service.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload document
// @Description Upload a file; the document starts in UPLOADED state
// @Tags Documents
// @Accept mpfd
// @Produce json
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents [post]
// @Security BearerAuth
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart field 'file' is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), actor, service.UploadInput{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Description List documents visible to the caller
// @Tags Documents
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Filename search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
// @Security BearerAuth
func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.DocumentFilter{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" {
		status := models.DocumentStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
			return
		}
		filter.Status = &status
	}
	if _, err := fmt.Sscanf(c.DefaultQuery("page", "1"), "%d", &filter.Page); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page must be a number"))
		return
	}
	if _, err := fmt.Sscanf(c.DefaultQuery("limit", "20"), "%d", &filter.Limit); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a number"))
		return
	}

	docs, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, docs, pagination)
}

// Get godoc
// @Summary Get document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
// @Security BearerAuth
func (h *DocumentHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	doc, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Submit godoc
// @Summary Submit document for review
// @Description Move an UPLOADED document to PENDING_REVIEW
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/submit [post]
// @Security BearerAuth
func (h *DocumentHandler) Submit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	doc, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Approve godoc
// @Summary Approve document
// @Description Move a PENDING_REVIEW document to APPROVED
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/approve [post]
// @Security BearerAuth
func (h *DocumentHandler) Approve(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	doc, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Reject godoc
// @Summary Reject document
// @Description Move a PENDING_REVIEW document to REJECTED with a reason
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body object true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/reject [post]
// @Security BearerAuth
func (h *DocumentHandler) Reject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}

	doc, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"), payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete document
// @Description Remove the record and release the stored file
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [delete]
// @Security BearerAuth
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download document bytes
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/download [get]
// @Security BearerAuth
func (h *DocumentHandler) Download(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	doc, rc, err := h.service.Download(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	streamFile(c, doc, rc)
}

// SignedURL godoc
// @Summary Mint signed download token
// @Description Time-limited token redeemable without an Authorization header
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/signed-url [get]
// @Security BearerAuth
func (h *DocumentHandler) SignedURL(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, expiresAt, err := h.service.SignedDownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"token":      token,
		"url":        fmt.Sprintf("/api/v1/files/%s", token),
		"expires_at": expiresAt,
	}, nil)
}

// DownloadSigned godoc
// @Summary Redeem signed download token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/{token} [get]
func (h *DocumentHandler) DownloadSigned(c *gin.Context) {
	doc, rc, err := h.service.DownloadSigned(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	streamFile(c, doc, rc)
}

// Export godoc
// @Summary Export document report
// @Description Admin-only CSV or PDF report of all documents
// @Tags Documents
// @Produce json
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /admin/documents/export [get]
// @Security BearerAuth
func (h *DocumentHandler) Export(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.ExportReport(c.Request.Context(), actor, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := "documents." + format
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK, contentType, payload)
}

func streamFile(c *gin.Context, doc *models.Document, rc io.Reader) {
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, doc.Filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		// Headers are already gone; nothing to do but note the break.
		_ = c.Error(err)
	}
}
