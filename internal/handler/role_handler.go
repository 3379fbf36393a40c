package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/unicms/internal/service"
)

type rolePayload struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	PermissionIDs *[]uint `json:"permissionIds"`
}

// ListRoles 获取角色及其权限集合
func (a *API) ListRoles(c *gin.Context) {
	roles, err := a.access.ListRoles()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list roles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// CreateRole 创建角色并原子地关联权限集合
func (a *API) CreateRole(c *gin.Context) {
	var payload rolePayload
	if !bindJSON(c, &payload, "invalid role payload") {
		return
	}

	role, err := a.access.CreateRole(service.RoleInput{
		Name:          payload.Name,
		Description:   payload.Description,
		PermissionIDs: payload.PermissionIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoleExists), errors.Is(err, service.ErrPermissionNotFound):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("op", "roles.create").Msg("failed to create role")
			respondError(c, http.StatusInternalServerError, "failed to create role")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

// UpdateRole 更新角色，权限集合为整体替换语义
func (a *API) UpdateRole(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid role id")
		return
	}

	var payload rolePayload
	if !bindJSON(c, &payload, "invalid role payload") {
		return
	}

	role, err := a.access.UpdateRole(id, service.RoleInput{
		Name:          payload.Name,
		Description:   payload.Description,
		PermissionIDs: payload.PermissionIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoleNotFound):
			respondError(c, http.StatusNotFound, "role not found")
		case errors.Is(err, service.ErrRoleExists), errors.Is(err, service.ErrPermissionNotFound):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to update role")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

// DeleteRole 删除角色并清除所有用户/权限关联
func (a *API) DeleteRole(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid role id")
		return
	}

	if err := a.access.DeleteRole(id); err != nil {
		if errors.Is(err, service.ErrRoleNotFound) {
			respondError(c, http.StatusNotFound, "role not found")
			return
		}
		log.Error().Err(err).Str("op", "roles.delete").Uint("role_id", id).Msg("failed to delete role")
		respondError(c, http.StatusInternalServerError, "failed to delete role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role deleted"})
}
