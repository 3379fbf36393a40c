package service

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/unicms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrTitleRequired = errors.New("post title is required")
	ErrSlugExists    = errors.New("a post with this slug already exists")
)

// PostService wraps post related database operations.
type PostService struct {
	db *gorm.DB
}

// PostImageInput is one entry of the submitted ordered image set.
// A non-zero ID re-uses an existing image row, otherwise the store
// assigns a new one.
type PostImageInput struct {
	ID      uint
	URL     string
	Caption string
}

// PostInput represents fields accepted when creating a post.
type PostInput struct {
	Title       string
	Slug        string
	Summary     string
	Content     string
	Image       *string
	Published   *bool
	Featured    *bool
	Categories  *string
	Tags        *string
	CategoryIDs *[]uint
	TagIDs      *[]uint
	Images      *[]PostImageInput
	AutoSlug    bool
	UserID      uint
}

// PostUpdate represents a sparse update: nil fields are left untouched.
// ImageProvided distinguishes "image absent from the request" from
// "image explicitly cleared".
type PostUpdate struct {
	Title         *string
	Slug          *string
	Summary       *string
	Content       *string
	Image         *string
	ImageProvided bool
	Published     *bool
	Featured      *bool
	Categories    *string
	Tags          *string
	CategoryIDs   *[]uint
	TagIDs        *[]uint
	Images        *[]PostImageInput
}

// PostPatch carries the restricted field set of the partial patch path.
type PostPatch struct {
	Published  *bool
	Featured   *bool
	Categories *string
	Tags       *string
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Published *bool
	Featured  *bool
	Category  string
	Search    string
	Page      int
	PerPage   int
}

// PostListResult aggregates paginated list data.
type PostListResult struct {
	Posts      []db.Post
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// PostView is the single-post read result. Warning is set when the read
// succeeded against a reduced join set.
type PostView struct {
	Post        db.Post
	ContentHTML string
	Warning     string
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB) *PostService {
	return &PostService{db: gdb}
}

// Create persists a post and its associations in a transaction.
//
// Slug resolution: an explicit slug wins; otherwise the slug is derived
// from the title, with a time stamp appended on the machine-generated
// flow (AutoSlug). The advisory uniqueness check below is backed by the
// unique index on posts.slug, which stays the source of truth under
// concurrent creations.
func (s *PostService) Create(input PostInput) (*db.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = DeriveSlug(title)
		if input.AutoSlug {
			slug = StampSlug(slug)
		}
	} else {
		slug = DeriveSlug(slug)
	}
	if slug == "" {
		slug = StampSlug("")
	}

	if taken, err := s.slugTaken(slug, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrSlugExists
	}

	published := true
	if input.Published != nil {
		published = *input.Published
	}

	post := db.Post{
		Title:     title,
		Slug:      slug,
		Summary:   strings.TrimSpace(input.Summary),
		Content:   input.Content,
		Image:     normalizeImageURL(input.Image),
		Published: published,
		UserID:    input.UserID,
	}
	if input.Featured != nil {
		post.Featured = *input.Featured
	}
	if input.Categories != nil {
		post.Categories = strings.TrimSpace(*input.Categories)
	}
	if input.Tags != nil {
		post.Tags = strings.TrimSpace(*input.Tags)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		if input.CategoryIDs != nil {
			if err := s.replaceCategories(tx, &post, *input.CategoryIDs); err != nil {
				return err
			}
		}
		if input.TagIDs != nil {
			if err := s.replaceTags(tx, &post, *input.TagIDs); err != nil {
				return err
			}
		}
		if input.Images != nil {
			if err := s.replaceImages(tx, post.ID, *input.Images); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.reload(post.ID)
}

// Update applies a sparse update to an existing post. If the title
// changes without an explicit slug the slug is regenerated, checked for
// uniqueness against every other post. Association sets provided in the
// update fully replace the stored sets inside one transaction.
func (s *PostService) Update(id uint, input PostUpdate) (*db.Post, error) {
	var existing db.Post
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		if title != existing.Title && input.Slug == nil {
			existing.Slug = DeriveSlug(title)
		}
		existing.Title = title
	}
	if input.Slug != nil {
		if slug := DeriveSlug(*input.Slug); slug != "" {
			existing.Slug = slug
		}
	}
	if taken, err := s.slugTaken(existing.Slug, existing.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrSlugExists
	}

	if input.Summary != nil {
		existing.Summary = strings.TrimSpace(*input.Summary)
	}
	if input.Content != nil {
		existing.Content = *input.Content
	}
	if input.ImageProvided {
		existing.Image = normalizeImageURL(input.Image)
	}
	if input.Published != nil {
		existing.Published = *input.Published
	}
	if input.Featured != nil {
		existing.Featured = *input.Featured
	}
	if input.Categories != nil {
		existing.Categories = strings.TrimSpace(*input.Categories)
	}
	if input.Tags != nil {
		existing.Tags = strings.TrimSpace(*input.Tags)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		if input.CategoryIDs != nil {
			if err := s.replaceCategories(tx, &existing, *input.CategoryIDs); err != nil {
				return err
			}
		}
		if input.TagIDs != nil {
			if err := s.replaceTags(tx, &existing, *input.TagIDs); err != nil {
				return err
			}
		}
		if input.Images != nil {
			if err := s.replaceImages(tx, existing.ID, *input.Images); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.reload(existing.ID)
}

// Patch changes only the restricted field set; anything else the caller
// sent was already dropped at the boundary.
func (s *PostService) Patch(id uint, patch PostPatch) (*db.Post, error) {
	var existing db.Post
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Published != nil {
		updates["published"] = *patch.Published
	}
	if patch.Featured != nil {
		updates["featured"] = *patch.Featured
	}
	if patch.Categories != nil {
		updates["categories"] = strings.TrimSpace(*patch.Categories)
	}
	if patch.Tags != nil {
		updates["tags"] = strings.TrimSpace(*patch.Tags)
	}

	if len(updates) > 0 {
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.reload(id)
}

// preloadTiers are the join sets attempted in order by Get. When a
// relation is structurally unavailable the read falls back to the next
// tier instead of failing, down to "author only".
var preloadTiers = [][]string{
	{"User", "Images", "CategoryList", "TagList"},
	{"User", "Images"},
	{"User"},
}

// Get fetches a single post by numeric id or slug, increments its view
// counter and renders the content. Partial results carry a warning.
func (s *PostService) Get(idOrSlug string) (*PostView, error) {
	var lastErr error
	for tier, relations := range preloadTiers {
		query := s.db
		for _, relation := range relations {
			if relation == "Images" {
				query = query.Preload("Images", func(tx *gorm.DB) *gorm.DB {
					return tx.Order("sort_order asc")
				})
				continue
			}
			query = query.Preload(relation)
		}

		var post db.Post
		if id, err := strconv.ParseUint(strings.TrimSpace(idOrSlug), 10, 32); err == nil {
			lastErr = query.First(&post, uint(id)).Error
		} else {
			lastErr = query.Where("slug = ?", idOrSlug).First(&post).Error
		}
		if lastErr != nil {
			if errors.Is(lastErr, gorm.ErrRecordNotFound) {
				return nil, ErrPostNotFound
			}
			log.Warn().Err(lastErr).Int("tier", tier).Str("post", idOrSlug).
				Msg("post read failed, retrying with reduced joins")
			continue
		}

		// 浏览计数为尽力而为，不要求并发下线性一致
		if err := s.db.Model(&db.Post{}).Where("id = ?", post.ID).
			UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
			log.Warn().Err(err).Uint("post_id", post.ID).Msg("view counter increment failed")
		} else {
			post.Views++
		}

		view := &PostView{Post: post, ContentHTML: RenderContent(post.Content)}
		if tier > 0 {
			view.Warning = "partial result: some related data was unavailable"
		}
		return view, nil
	}

	return nil, lastErr
}

// List provides paginated posts filtered by publish state, legacy
// category string, featured flag and free-text search, newest first.
func (s *PostService) List(filter PostFilter) (*PostListResult, error) {
	result := &PostListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = 10
	}

	countQuery := s.applyFilters(s.db.Model(&db.Post{}), filter)
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, err
	}

	offset := (result.Page - 1) * result.PerPage

	var posts []db.Post
	dataQuery := s.db.Model(&db.Post{}).
		Preload("User").
		Preload("Images", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order asc")
		}).
		Preload("CategoryList").
		Preload("TagList")
	dataQuery = s.applyFilters(dataQuery, filter)

	if err := dataQuery.
		Order("posts.created_at desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	if result.Total == 0 {
		result.TotalPages = 1
	} else {
		result.TotalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}

	result.Posts = posts
	return result, nil
}

// Delete removes a post, its image rows and its association join rows
// in one transaction. Hard delete, no recovery.
func (s *PostService) Delete(id uint) error {
	var post db.Post
	if err := s.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&post).Association("CategoryList").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&post).Association("TagList").Clear(); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("post_id = ?", post.ID).Delete(&db.PostImage{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&post).Error
	})
}

func (s *PostService) applyFilters(query *gorm.DB, filter PostFilter) *gorm.DB {
	if filter.Published != nil {
		query = query.Where("posts.published = ?", *filter.Published)
	}
	if filter.Featured != nil {
		query = query.Where("posts.featured = ?", *filter.Featured)
	}
	// 分类过滤针对 legacy 逗号串做子串匹配，保持旧消费方语义
	if filter.Category != "" {
		query = query.Where("posts.categories LIKE ?", "%"+filter.Category+"%")
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("(posts.title LIKE ? OR posts.summary LIKE ?)", search, search)
	}
	return query
}

func (s *PostService) slugTaken(slug string, excludeID uint) (bool, error) {
	var count int64
	query := s.db.Model(&db.Post{}).Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PostService) replaceCategories(tx *gorm.DB, post *db.Post, ids []uint) error {
	ids = lo.Uniq(ids)
	var categories []db.Category
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&categories).Error; err != nil {
			return err
		}
		if len(categories) != len(ids) {
			return ErrCategoryNotFound
		}
	}
	if err := tx.Model(post).Association("CategoryList").Replace(categories); err != nil {
		return err
	}

	// 同步维护 legacy 逗号串，旧消费方依赖它
	names := lo.Map(categories, func(c db.Category, _ int) string { return c.Name })
	return tx.Model(post).UpdateColumn("categories", strings.Join(names, ",")).Error
}

func (s *PostService) replaceTags(tx *gorm.DB, post *db.Post, ids []uint) error {
	ids = lo.Uniq(ids)
	var tags []db.Tag
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
			return err
		}
		if len(tags) != len(ids) {
			return ErrTagNotFound
		}
	}
	if err := tx.Model(post).Association("TagList").Replace(tags); err != nil {
		return err
	}

	names := lo.Map(tags, func(t db.Tag, _ int) string { return t.Name })
	return tx.Model(post).UpdateColumn("tags", strings.Join(names, ",")).Error
}

// replaceImages drops the whole stored image set and re-inserts the
// submitted list with dense zero-based order. Submitted ids are kept.
func (s *PostService) replaceImages(tx *gorm.DB, postID uint, images []PostImageInput) error {
	if err := tx.Unscoped().Where("post_id = ?", postID).Delete(&db.PostImage{}).Error; err != nil {
		return err
	}

	order := 0
	for _, input := range images {
		url := strings.TrimSpace(input.URL)
		if url == "" {
			continue
		}
		image := db.PostImage{
			PostID:    postID,
			URL:       url,
			Caption:   strings.TrimSpace(input.Caption),
			SortOrder: order,
		}
		order++
		image.ID = input.ID
		if err := tx.Create(&image).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *PostService) reload(id uint) (*db.Post, error) {
	var post db.Post
	if err := s.db.
		Preload("User").
		Preload("Images", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order asc")
		}).
		Preload("CategoryList").
		Preload("TagList").
		First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func normalizeImageURL(image *string) *string {
	if image == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*image)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
