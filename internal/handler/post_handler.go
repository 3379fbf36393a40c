package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/unicms/internal/service"
)

type postImagePayload struct {
	ID      uint   `json:"id"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type postCreatePayload struct {
	Title       string              `json:"title"`
	Slug        string              `json:"slug"`
	Summary     string              `json:"summary"`
	Content     string              `json:"content"`
	Image       json.RawMessage     `json:"image"`
	Published   *flexBool           `json:"published"`
	Featured    *flexBool           `json:"featured"`
	Categories  *string             `json:"categories"`
	Tags        *string             `json:"tags"`
	AutoSlug    bool                `json:"autoSlug"`
	CategoryIDs *[]uint             `json:"categoryIds"`
	TagIDs      *[]uint             `json:"tagIds"`
	Images      *[]postImagePayload `json:"images"`
}

type postUpdatePayload struct {
	Title       *string             `json:"title"`
	Slug        *string             `json:"slug"`
	Summary     *string             `json:"summary"`
	Content     *string             `json:"content"`
	Image       json.RawMessage     `json:"image"`
	Published   *flexBool           `json:"published"`
	Featured    *flexBool           `json:"featured"`
	Categories  *string             `json:"categories"`
	Tags        *string             `json:"tags"`
	CategoryIDs *[]uint             `json:"categoryIds"`
	TagIDs      *[]uint             `json:"tagIds"`
	Images      *[]postImagePayload `json:"images"`
}

// postPatchPayload deliberately lists only the patchable fields; any
// other field in the request body is dropped during binding, which
// protects post content from this narrow-purpose endpoint.
type postPatchPayload struct {
	Published  *flexBool `json:"published"`
	Featured   *flexBool `json:"featured"`
	Categories *string   `json:"categories"`
	Tags       *string   `json:"tags"`
}

func toImageInputs(images []postImagePayload) []service.PostImageInput {
	return lo.Map(images, func(p postImagePayload, _ int) service.PostImageInput {
		return service.PostImageInput{ID: p.ID, URL: p.URL, Caption: p.Caption}
	})
}

// ListPosts 获取文章列表，响应形状固定为 {posts, total, ...}。
func (a *API) ListPosts(c *gin.Context) {
	filter := service.PostFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("published"); raw != "" {
		published := raw == "true" || raw == "1"
		filter.Published = &published
	}
	if raw := c.Query("featured"); raw != "" {
		featured := raw == "true" || raw == "1"
		filter.Featured = &featured
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.PerPage = limit
	}

	result, err := a.posts.List(filter)
	if err != nil {
		log.Error().Err(err).Str("op", "posts.list").Msg("failed to list posts")
		respondError(c, http.StatusInternalServerError, "failed to list posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":      result.Posts,
		"total":      result.Total,
		"totalPages": result.TotalPages,
		"page":       result.Page,
		"perPage":    result.PerPage,
	})
}

// GetPost 获取单篇文章，按数字 ID 或 slug 解析，并递增浏览计数。
func (a *API) GetPost(c *gin.Context) {
	idOrSlug := c.Param("idOrSlug")
	if c.Query("retry") == "true" {
		// 诊断标记，无行为分支
		log.Debug().Str("post", idOrSlug).Msg("client retry of post read")
	}

	view, err := a.posts.Get(idOrSlug)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			respondError(c, http.StatusNotFound, "post not found")
			return
		}
		log.Error().Err(err).Str("op", "posts.get").Str("post", idOrSlug).Msg("failed to fetch post")
		respondError(c, http.StatusInternalServerError, "failed to fetch post")
		return
	}

	response := gin.H{"post": view.Post, "contentHtml": view.ContentHTML}
	if view.Warning != "" {
		response["warning"] = view.Warning
	}
	c.JSON(http.StatusOK, response)
}

// CreatePost 创建新文章
func (a *API) CreatePost(c *gin.Context) {
	var payload postCreatePayload
	if !bindJSON(c, &payload, "invalid post payload") {
		return
	}

	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	input := service.PostInput{
		Title:       payload.Title,
		Slug:        payload.Slug,
		Summary:     payload.Summary,
		Content:     payload.Content,
		Published:   payload.Published.toBoolPtr(),
		Featured:    payload.Featured.toBoolPtr(),
		Categories:  payload.Categories,
		Tags:        payload.Tags,
		AutoSlug:    payload.AutoSlug,
		CategoryIDs: payload.CategoryIDs,
		TagIDs:      payload.TagIDs,
		UserID:      user.ID,
	}
	if _, image := normalizeImageField(payload.Image); image != nil {
		input.Image = image
	}
	if payload.Images != nil {
		images := toImageInputs(*payload.Images)
		input.Images = &images
	}

	post, err := a.posts.Create(input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTitleRequired), errors.Is(err, service.ErrSlugExists),
			errors.Is(err, service.ErrCategoryNotFound), errors.Is(err, service.ErrTagNotFound):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("op", "posts.create").Msg("failed to create post")
			respondError(c, http.StatusInternalServerError, "failed to create post")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// UpdatePost 更新文章（全量替换提供的字段与关联集合）
func (a *API) UpdatePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid post id")
		return
	}

	var payload postUpdatePayload
	if !bindJSON(c, &payload, "invalid post payload") {
		return
	}

	input := service.PostUpdate{
		Title:       payload.Title,
		Slug:        payload.Slug,
		Summary:     payload.Summary,
		Content:     payload.Content,
		Published:   payload.Published.toBoolPtr(),
		Featured:    payload.Featured.toBoolPtr(),
		Categories:  payload.Categories,
		Tags:        payload.Tags,
		CategoryIDs: payload.CategoryIDs,
		TagIDs:      payload.TagIDs,
	}
	input.ImageProvided, input.Image = normalizeImageField(payload.Image)
	if payload.Images != nil {
		images := toImageInputs(*payload.Images)
		input.Images = &images
	}

	post, err := a.posts.Update(id, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			respondError(c, http.StatusNotFound, "post not found")
		case errors.Is(err, service.ErrTitleRequired), errors.Is(err, service.ErrSlugExists),
			errors.Is(err, service.ErrCategoryNotFound), errors.Is(err, service.ErrTagNotFound):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("op", "posts.update").Uint("post_id", id).Msg("failed to update post")
			respondError(c, http.StatusInternalServerError, "failed to update post")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// PatchPost 仅允许修改发布状态、推荐位与 legacy 分类/标签串。
func (a *API) PatchPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid post id")
		return
	}

	var payload postPatchPayload
	if !bindJSON(c, &payload, "invalid patch payload") {
		return
	}

	post, err := a.posts.Patch(id, service.PostPatch{
		Published:  payload.Published.toBoolPtr(),
		Featured:   payload.Featured.toBoolPtr(),
		Categories: payload.Categories,
		Tags:       payload.Tags,
	})
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			respondError(c, http.StatusNotFound, "post not found")
			return
		}
		log.Error().Err(err).Str("op", "posts.patch").Uint("post_id", id).Msg("failed to patch post")
		respondError(c, http.StatusInternalServerError, "failed to patch post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost 删除文章及其图片集
func (a *API) DeletePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid post id")
		return
	}

	if err := a.posts.Delete(id); err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			respondError(c, http.StatusNotFound, "post not found")
			return
		}
		log.Error().Err(err).Str("op", "posts.delete").Uint("post_id", id).Msg("failed to delete post")
		respondError(c, http.StatusInternalServerError, "failed to delete post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}
