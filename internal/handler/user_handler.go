package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/service"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
	"github.com/sheriapal/sheriapal-api/pkg/response"
)

// UserHandler exposes admin account management.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param role query string false "Filter by role"
// @Param search query string false "Email or name search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [get]
// @Security BearerAuth
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.UserFilter{Search: c.Query("search")}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		if !role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role filter"))
			return
		}
		filter.Role = &role
	}
	if _, err := fmt.Sscanf(c.DefaultQuery("page", "1"), "%d", &filter.Page); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page must be a number"))
		return
	}
	if _, err := fmt.Sscanf(c.DefaultQuery("limit", "20"), "%d", &filter.Limit); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a number"))
		return
	}

	users, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [get]
// @Security BearerAuth
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// AssignRole godoc
// @Summary Assign role
// @Description Change an account's role; restricted to SUPERADMIN
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body object true "New role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users/{id}/role [put]
// @Security BearerAuth
func (h *UserHandler) AssignRole(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "role is required"))
		return
	}

	user, err := h.service.AssignRole(c.Request.Context(), actor, c.Param("id"), models.UserRole(payload.Role))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// CreateAdmin godoc
// @Summary Create admin account
// @Description SUPERADMIN-only provisioning of ADMIN accounts
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body object true "Admin account details"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [post]
// @Security BearerAuth
func (h *UserHandler) CreateAdmin(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admin payload"))
		return
	}

	user, err := h.service.CreateAdmin(c.Request.Context(), actor, payload.Email, payload.Password, payload.FullName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}
