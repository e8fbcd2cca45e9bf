package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduportal/backend/internal/model"
	"github.com/eduportal/backend/internal/service"
)

type AdminHandler struct {
	svc *service.AuthService
}

func NewAdminHandler(svc *service.AuthService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ListUsers godoc
// @Summary List accounts (paged)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} model.PagedUsersResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	accounts, total, err := h.svc.ListAccounts(c.Request.Context(), page, pageSize)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	items := make([]*model.UserDTO, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, model.NewUserDTO(a))
	}
	c.JSON(http.StatusOK, model.PagedUsersResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// UpdateUserStatus godoc
// @Summary Activate or disable an account
// @Description Disabling an account revokes all of its refresh sessions.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id"
// @Param request body model.UpdateStatusRequest true "New status"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/admin/users/{id}/status [patch]
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.SetAccountStatus(c.Request.Context(), id, model.AccountStatus(req.Status)); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "updated"})
}

// UpdateUserRoles godoc
// @Summary Replace an account's role set
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id"
// @Param request body model.UpdateRolesRequest true "New roles (non-empty)"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/admin/users/{id}/roles [patch]
func (h *AdminHandler) UpdateUserRoles(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	var req model.UpdateRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.SetAccountRoles(c.Request.Context(), id, req.Roles); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "updated"})
}
