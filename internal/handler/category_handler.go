package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/unicms/internal/service"
)

type taxonomyPayload struct {
	Name string `json:"name"`
}

// ListCategories 获取分类列表
func (a *API) ListCategories(c *gin.Context) {
	categories, err := a.categories.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory 创建新分类
func (a *API) CreateCategory(c *gin.Context) {
	var payload taxonomyPayload
	if !bindJSON(c, &payload, "invalid category payload") {
		return
	}

	category, err := a.categories.Create(payload.Name)
	if err != nil {
		if errors.Is(err, service.ErrCategoryExists) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("op", "categories.create").Msg("failed to create category")
		respondError(c, http.StatusInternalServerError, "failed to create category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory 重命名分类
func (a *API) UpdateCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid category id")
		return
	}

	var payload taxonomyPayload
	if !bindJSON(c, &payload, "invalid category payload") {
		return
	}

	category, err := a.categories.Update(id, payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCategoryNotFound):
			respondError(c, http.StatusNotFound, "category not found")
		case errors.Is(err, service.ErrCategoryExists):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to update category")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory 删除分类，仍被文章引用时拒绝
func (a *API) DeleteCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := a.categories.Delete(id); err != nil {
		switch {
		case errors.Is(err, service.ErrCategoryNotFound):
			respondError(c, http.StatusNotFound, "category not found")
		case errors.Is(err, service.ErrCategoryInUse):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to delete category")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}
