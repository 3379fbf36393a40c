package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/unicms/internal/service"
)

type userPayload struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type idsPayload struct {
	RoleIDs       []uint `json:"roleIds"`
	PermissionIDs []uint `json:"permissionIds"`
}

// ListUsers 获取后台账号列表
func (a *API) ListUsers(c *gin.Context) {
	users, err := a.users.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser 创建后台账号
func (a *API) CreateUser(c *gin.Context) {
	var payload userPayload
	if !bindJSON(c, &payload, "invalid user payload") {
		return
	}

	user, err := a.users.Create(service.UserInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameExists), errors.Is(err, service.ErrEmailExists):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("op", "users.create").Msg("failed to create user")
			respondError(c, http.StatusBadRequest, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUser 稀疏更新账号字段
func (a *API) UpdateUser(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var payload userPayload
	if !bindJSON(c, &payload, "invalid user payload") {
		return
	}

	user, err := a.users.Update(id, service.UserInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrUsernameExists), errors.Is(err, service.ErrEmailExists):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to update user")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser 删除账号
func (a *API) DeleteUser(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := a.users.Delete(id); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "user not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to delete user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// SetUserRoles 整体替换用户的角色集合
func (a *API) SetUserRoles(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var payload idsPayload
	if !bindJSON(c, &payload, "invalid roles payload") {
		return
	}

	user, err := a.access.SetUserRoles(id, payload.RoleIDs)
	if err != nil {
		a.respondAccessError(c, err, "failed to set user roles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// SetUserPermissions 整体替换用户的直接授权集合
func (a *API) SetUserPermissions(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var payload idsPayload
	if !bindJSON(c, &payload, "invalid permissions payload") {
		return
	}

	user, err := a.access.SetUserPermissions(id, payload.PermissionIDs)
	if err != nil {
		a.respondAccessError(c, err, "failed to set user permissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// SetUserAccess 在单个事务中同时替换角色与直接授权集合
func (a *API) SetUserAccess(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var payload idsPayload
	if !bindJSON(c, &payload, "invalid access payload") {
		return
	}

	user, err := a.access.ReplaceAccess(id, payload.RoleIDs, payload.PermissionIDs)
	if err != nil {
		a.respondAccessError(c, err, "failed to set user access")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (a *API) respondAccessError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrRoleNotFound), errors.Is(err, service.ErrPermissionNotFound):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("op", "users.access").Msg(fallback)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
