package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/unicms/internal/service"
)

// ListTags 获取标签列表
func (a *API) ListTags(c *gin.Context) {
	tags, err := a.tags.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list tags")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// CreateTag 创建新标签
func (a *API) CreateTag(c *gin.Context) {
	var payload taxonomyPayload
	if !bindJSON(c, &payload, "invalid tag payload") {
		return
	}

	tag, err := a.tags.Create(payload.Name)
	if err != nil {
		if errors.Is(err, service.ErrTagExists) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("op", "tags.create").Msg("failed to create tag")
		respondError(c, http.StatusInternalServerError, "failed to create tag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// UpdateTag 重命名标签
func (a *API) UpdateTag(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid tag id")
		return
	}

	var payload taxonomyPayload
	if !bindJSON(c, &payload, "invalid tag payload") {
		return
	}

	tag, err := a.tags.Update(id, payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTagNotFound):
			respondError(c, http.StatusNotFound, "tag not found")
		case errors.Is(err, service.ErrTagExists):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to update tag")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// DeleteTag 删除标签，仍被文章引用时拒绝
func (a *API) DeleteTag(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid tag id")
		return
	}

	if err := a.tags.Delete(id); err != nil {
		switch {
		case errors.Is(err, service.ErrTagNotFound):
			respondError(c, http.StatusNotFound, "tag not found")
		case errors.Is(err, service.ErrTagInUse):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to delete tag")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tag deleted"})
}
