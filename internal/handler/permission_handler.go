package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/unicms/internal/service"
)

type permissionPayload struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	RoleIDs     *[]uint `json:"roleIds"`
}

// ListPermissions 获取权限列表，附带直接授权用户数
func (a *API) ListPermissions(c *gin.Context) {
	permissions, err := a.access.ListPermissions()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list permissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": permissions})
}

// CreatePermission 创建权限并可选关联角色
func (a *API) CreatePermission(c *gin.Context) {
	var payload permissionPayload
	if !bindJSON(c, &payload, "invalid permission payload") {
		return
	}

	permission, err := a.access.CreatePermission(service.PermissionInput{
		Name:        payload.Name,
		Description: payload.Description,
		RoleIDs:     payload.RoleIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPermissionExists), errors.Is(err, service.ErrRoleNotFound):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("op", "permissions.create").Msg("failed to create permission")
			respondError(c, http.StatusInternalServerError, "failed to create permission")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"permission": permission})
}

// UpdatePermission 更新权限，角色集合为整体替换语义
func (a *API) UpdatePermission(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid permission id")
		return
	}

	var payload permissionPayload
	if !bindJSON(c, &payload, "invalid permission payload") {
		return
	}

	permission, err := a.access.UpdatePermission(id, service.PermissionInput{
		Name:        payload.Name,
		Description: payload.Description,
		RoleIDs:     payload.RoleIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPermissionNotFound):
			respondError(c, http.StatusNotFound, "permission not found")
		case errors.Is(err, service.ErrPermissionExists), errors.Is(err, service.ErrRoleNotFound):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to update permission")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"permission": permission})
}

// DeletePermission 删除权限并清除角色与直接授权关联
func (a *API) DeletePermission(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid permission id")
		return
	}

	if err := a.access.DeletePermission(id); err != nil {
		if errors.Is(err, service.ErrPermissionNotFound) {
			respondError(c, http.StatusNotFound, "permission not found")
			return
		}
		log.Error().Err(err).Str("op", "permissions.delete").Uint("permission_id", id).Msg("failed to delete permission")
		respondError(c, http.StatusInternalServerError, "failed to delete permission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "permission deleted"})
}
