package service

import (
	"errors"
	"strings"

	"github.com/unicms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryInUse    = errors.New("category is associated with posts")
	ErrCategoryNotFound = errors.New("category not found")
)

// CategoryService wraps category related operations.
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

// List returns categories ordered by name.
func (s *CategoryService) List() ([]db.Category, error) {
	var categories []db.Category
	if err := s.db.Order("name asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Create inserts a new category with unique name and derived slug.
func (s *CategoryService) Create(name string) (*db.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("category name is required")
	}

	slug := DeriveSlug(name)
	var count int64
	if err := s.db.Model(&db.Category{}).
		Where("name = ? OR slug = ?", name, slug).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrCategoryExists
	}

	category := db.Category{Name: name, Slug: slug}
	if err := s.db.Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Update renames a category, re-deriving its slug.
func (s *CategoryService) Update(id uint, name string) (*db.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("category name is required")
	}

	var category db.Category
	if err := s.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	slug := DeriveSlug(name)
	var count int64
	if err := s.db.Model(&db.Category{}).
		Where("(name = ? OR slug = ?) AND id <> ?", name, slug, id).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrCategoryExists
	}

	category.Name = name
	category.Slug = slug
	if err := s.db.Save(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Delete removes a category. Deletion is rejected while any post still
// references it, so no dangling join rows can appear.
func (s *CategoryService) Delete(id uint) error {
	var category db.Category
	if err := s.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	if count := s.db.Model(&category).Association("Posts").Count(); count > 0 {
		return ErrCategoryInUse
	}

	return s.db.Unscoped().Delete(&category).Error
}
