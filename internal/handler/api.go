package handler

import (
	"github.com/unicms/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	posts      *service.PostService
	categories *service.CategoryService
	tags       *service.TagService
	access     *service.AccessService
	users      *service.UserService
	uploadDir  string
	uploadURL  string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, uploadDir, uploadURL string) *API {
	return &API{
		db:         db,
		posts:      service.NewPostService(db),
		categories: service.NewCategoryService(db),
		tags:       service.NewTagService(db),
		access:     service.NewAccessService(db),
		users:      service.NewUserService(db),
		uploadDir:  uploadDir,
		uploadURL:  uploadURL,
	}
}

// DB exposes the underlying gorm instance for tests.
func (a *API) DB() *gorm.DB {
	return a.db
}
