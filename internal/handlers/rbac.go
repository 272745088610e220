package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"craftquote/api/internal/models"
)

type roleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type permissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h HandlerSet) ListRoles(c *gin.Context) {
	roles, err := h.rbac.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, roleResponse{ID: role.ID, Name: role.Name, Description: role.Description})
	}

	c.JSON(http.StatusOK, gin.H{"roles": resp})
}

type createRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h HandlerSet) CreateRole(c *gin.Context) {
	var req createRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, err := h.rbac.CreateRole(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"role": roleResponse{ID: role.ID, Name: role.Name, Description: role.Description}})
}

func (h HandlerSet) GetRolePermissions(c *gin.Context) {
	perms, err := h.rbac.GetRolePermissions(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	if perms == nil {
		perms = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

type grantPermissionRequest struct {
	PermissionID string `json:"permissionId" binding:"required"`
}

func (h HandlerSet) GrantPermission(c *gin.Context) {
	var req grantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rbac.GrantPermissionToRole(c.Request.Context(), c.Param("id"), req.PermissionID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListPermissions(c *gin.Context) {
	perms, err := h.rbac.ListPermissions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		resp = append(resp, toPermissionResponse(perm))
	}

	c.JSON(http.StatusOK, gin.H{"permissions": resp})
}

type createPermissionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h HandlerSet) CreatePermission(c *gin.Context) {
	var req createPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	perm, err := h.rbac.CreatePermission(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"permission": toPermissionResponse(perm)})
}

func toPermissionResponse(perm models.Permission) permissionResponse {
	return permissionResponse{ID: perm.ID, Name: perm.Name, Description: perm.Description}
}
