package service

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/unicms/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func createTestAuthor(t *testing.T, gdb *gorm.DB) db.User {
	t.Helper()
	user := db.User{
		Username: fmt.Sprintf("editor-%d", time.Now().UnixNano()),
		Email:    fmt.Sprintf("editor-%d@unicms.edu", time.Now().UnixNano()),
		Password: "hashed",
		Role:     db.RoleAdmin,
	}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create author: %v", err)
	}
	return user
}

func TestPostServiceCreateDerivesSlug(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	post, err := svc.Create(PostInput{
		Title:   "New Engineering Building Opens!",
		Summary: "ribbon cutting",
		Content: "The new building is open.",
		UserID:  user.ID,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.Slug != "new-engineering-building-opens" {
		t.Fatalf("unexpected slug %q", post.Slug)
	}
	if !post.Published {
		t.Fatalf("expected published to default to true")
	}
	if post.User.ID != user.ID {
		t.Fatalf("expected author joined, got user id %d", post.User.ID)
	}
}

func TestPostServiceCreateRejectsDuplicateSlug(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	if _, err := svc.Create(PostInput{Title: "Orientation Week", UserID: user.ID}); err != nil {
		t.Fatalf("create first post: %v", err)
	}

	_, err := svc.Create(PostInput{Title: "Orientation: Week?!", UserID: user.ID})
	if !errors.Is(err, ErrSlugExists) {
		t.Fatalf("expected ErrSlugExists, got %v", err)
	}

	var count int64
	if err := gdb.Model(&db.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one stored post, got %d", count)
	}
}

func TestPostServiceCreateAutoSlugAvoidsCollision(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	if _, err := svc.Create(PostInput{Title: "Commencement", UserID: user.ID}); err != nil {
		t.Fatalf("create first post: %v", err)
	}

	post, err := svc.Create(PostInput{Title: "Commencement", AutoSlug: true, UserID: user.ID})
	if err != nil {
		t.Fatalf("create auto-slug post: %v", err)
	}
	if post.Slug == "commencement" {
		t.Fatalf("expected disambiguated slug, got %q", post.Slug)
	}
}

func TestPostServiceUpdateRegeneratesSlugOnTitleChange(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	post, err := svc.Create(PostInput{Title: "Old Title", UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	title := "Brand New Title"
	updated, err := svc.Update(post.ID, PostUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update post: %v", err)
	}
	if updated.Slug != "brand-new-title" {
		t.Fatalf("expected regenerated slug, got %q", updated.Slug)
	}

	// sparse semantics: untouched fields survive
	if updated.Summary != post.Summary || updated.Content != post.Content {
		t.Fatalf("sparse update clobbered unrelated fields")
	}
}

func TestPostServiceUpdateRejectsSlugOfOtherPost(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	if _, err := svc.Create(PostInput{Title: "First Post", UserID: user.ID}); err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.Create(PostInput{Title: "Second Post", UserID: user.ID})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	slug := "first-post"
	if _, err := svc.Update(second.ID, PostUpdate{Slug: &slug}); !errors.Is(err, ErrSlugExists) {
		t.Fatalf("expected ErrSlugExists, got %v", err)
	}

	// updating a post to its own slug is fine
	own := "second-post"
	if _, err := svc.Update(second.ID, PostUpdate{Slug: &own}); err != nil {
		t.Fatalf("update with own slug: %v", err)
	}
}

func TestPostServiceImageReplaceSet(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	initial := []PostImageInput{
		{URL: "/static/uploads/a.jpg", Caption: "a"},
		{URL: "/static/uploads/b.jpg", Caption: "b"},
	}
	post, err := svc.Create(PostInput{Title: "Gallery Post", Images: &initial, UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if len(post.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(post.Images))
	}

	keepID := post.Images[1].ID
	replacement := []PostImageInput{
		{ID: keepID, URL: "/static/uploads/b.jpg", Caption: "b moved first"},
		{URL: "/static/uploads/c.jpg"},
		{URL: "/static/uploads/d.jpg"},
	}
	updated, err := svc.Update(post.ID, PostUpdate{Images: &replacement})
	if err != nil {
		t.Fatalf("update post: %v", err)
	}

	if len(updated.Images) != 3 {
		t.Fatalf("expected exactly 3 images after replace, got %d", len(updated.Images))
	}
	for i, img := range updated.Images {
		if img.SortOrder != i {
			t.Fatalf("expected dense zero-based order, image %d has order %d", i, img.SortOrder)
		}
	}
	if updated.Images[0].ID != keepID {
		t.Fatalf("expected submitted id %d preserved, got %d", keepID, updated.Images[0].ID)
	}

	var leftover int64
	if err := gdb.Model(&db.PostImage{}).Where("url = ?", "/static/uploads/a.jpg").Count(&leftover).Error; err != nil {
		t.Fatalf("count leftovers: %v", err)
	}
	if leftover != 0 {
		t.Fatalf("expected old image rows removed, found %d", leftover)
	}
}

func TestPostServiceCategoryFullReplace(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	categories := NewCategoryService(gdb)
	user := createTestAuthor(t, gdb)

	a, err := categories.Create("Academics")
	if err != nil {
		t.Fatalf("create category A: %v", err)
	}
	b, err := categories.Create("Research")
	if err != nil {
		t.Fatalf("create category B: %v", err)
	}
	cc, err := categories.Create("Campus Life")
	if err != nil {
		t.Fatalf("create category C: %v", err)
	}

	first := []uint{a.ID, b.ID}
	post, err := svc.Create(PostInput{Title: "Categorized", CategoryIDs: &first, UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if len(post.CategoryList) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(post.CategoryList))
	}

	second := []uint{b.ID, cc.ID}
	updated, err := svc.Update(post.ID, PostUpdate{CategoryIDs: &second})
	if err != nil {
		t.Fatalf("update post: %v", err)
	}

	got := map[uint]bool{}
	for _, cat := range updated.CategoryList {
		got[cat.ID] = true
	}
	if len(got) != 2 || !got[b.ID] || !got[cc.ID] || got[a.ID] {
		t.Fatalf("expected exactly {B, C}, got %v", got)
	}

	// legacy comma string stays in sync with the structured set
	if updated.Categories != "Research,Campus Life" && updated.Categories != "Campus Life,Research" {
		t.Fatalf("unexpected legacy categories string %q", updated.Categories)
	}
}

func TestPostServiceUpdateUnknownCategoryFails(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	post, err := svc.Create(PostInput{Title: "No Such Category", UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	bogus := []uint{9999}
	if _, err := svc.Update(post.ID, PostUpdate{CategoryIDs: &bogus}); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestPostServicePatchRestrictedFields(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	post, err := svc.Create(PostInput{Title: "Patchable", Content: "keep me", UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	published := false
	featured := true
	tags := "news,events"
	patched, err := svc.Patch(post.ID, PostPatch{Published: &published, Featured: &featured, Tags: &tags})
	if err != nil {
		t.Fatalf("patch post: %v", err)
	}

	if patched.Published {
		t.Fatalf("expected published false after patch")
	}
	if !patched.Featured {
		t.Fatalf("expected featured true after patch")
	}
	if patched.Tags != "news,events" {
		t.Fatalf("unexpected legacy tags %q", patched.Tags)
	}
	if patched.Content != "keep me" || patched.Title != "Patchable" {
		t.Fatalf("patch must not touch content or title")
	}
}

func TestPostServiceGetIncrementsViews(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	post, err := svc.Create(PostInput{Title: "Viewed Post", UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	before := post.Views
	if _, err := svc.Get(strconv.FormatUint(uint64(post.ID), 10)); err != nil {
		t.Fatalf("read by id: %v", err)
	}
	if _, err := svc.Get(post.Slug); err != nil {
		t.Fatalf("read by slug: %v", err)
	}

	var stored db.Post
	if err := gdb.First(&stored, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if stored.Views != before+2 {
		t.Fatalf("expected views %d, got %d", before+2, stored.Views)
	}
}

func TestPostServiceGetNotFound(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)

	if _, err := svc.Get("no-such-slug"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestPostServiceGetDegradesWhenImagesUnavailable(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	post, err := svc.Create(PostInput{Title: "Resilient Read", UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	// simulate a schema missing the images relation
	if err := gdb.Migrator().DropTable(&db.PostImage{}); err != nil {
		t.Fatalf("drop images table: %v", err)
	}

	view, err := svc.Get(post.Slug)
	if err != nil {
		t.Fatalf("expected degraded read to succeed, got %v", err)
	}
	if view.Warning == "" {
		t.Fatalf("expected warning marker on degraded read")
	}
	if view.Post.User.ID != user.ID {
		t.Fatalf("expected author data to survive degradation")
	}
}

func TestPostServiceListFilters(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	published := true
	unpublished := false
	cats := "Athletics,Events"
	if _, err := svc.Create(PostInput{Title: "Track Meet", Published: &published, Categories: &cats, UserID: user.ID}); err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := svc.Create(PostInput{Title: "Draft Announcement", Published: &unpublished, UserID: user.ID}); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	result, err := svc.List(PostFilter{Published: &published})
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if result.Total != 1 || len(result.Posts) != 1 {
		t.Fatalf("expected 1 published post, got total=%d len=%d", result.Total, len(result.Posts))
	}

	result, err = svc.List(PostFilter{Category: "Athletics"})
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if result.Total != 1 || result.Posts[0].Title != "Track Meet" {
		t.Fatalf("expected category filter to match legacy string")
	}

	result, err = svc.List(PostFilter{Search: "announcement"})
	if err != nil {
		t.Fatalf("list by search: %v", err)
	}
	if result.Total != 1 || result.Posts[0].Title != "Draft Announcement" {
		t.Fatalf("expected search to match title")
	}
}

func TestPostServiceListNewestFirst(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	first, err := svc.Create(PostInput{Title: "Older", UserID: user.ID})
	if err != nil {
		t.Fatalf("create older: %v", err)
	}
	// 保证 created_at 有序
	if err := gdb.Model(&db.Post{}).Where("id = ?", first.ID).
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("backdate older post: %v", err)
	}
	if _, err := svc.Create(PostInput{Title: "Newer", UserID: user.ID}); err != nil {
		t.Fatalf("create newer: %v", err)
	}

	result, err := svc.List(PostFilter{})
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(result.Posts) != 2 || result.Posts[0].Title != "Newer" {
		t.Fatalf("expected newest first ordering")
	}
}

func TestPostServiceDeleteRemovesImages(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	images := []PostImageInput{{URL: "/static/uploads/x.jpg"}, {URL: "/static/uploads/y.jpg"}}
	post, err := svc.Create(PostInput{Title: "Doomed", Images: &images, UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if err := svc.Delete(post.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}

	var posts, orphans int64
	if err := gdb.Unscoped().Model(&db.Post{}).Where("id = ?", post.ID).Count(&posts).Error; err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if err := gdb.Unscoped().Model(&db.PostImage{}).Where("post_id = ?", post.ID).Count(&orphans).Error; err != nil {
		t.Fatalf("count images: %v", err)
	}
	if posts != 0 {
		t.Fatalf("expected hard-deleted post row")
	}
	if orphans != 0 {
		t.Fatalf("expected no orphaned image rows, found %d", orphans)
	}
}

func TestPostServiceUpdateClearsMalformedImage(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPostService(gdb)
	user := createTestAuthor(t, gdb)

	cover := "https://cdn.unicms.edu/cover.jpg"
	post, err := svc.Create(PostInput{Title: "Covered", Image: &cover, UserID: user.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.Image == nil {
		t.Fatalf("expected cover stored")
	}

	empty := "   "
	updated, err := svc.Update(post.ID, PostUpdate{Image: &empty, ImageProvided: true})
	if err != nil {
		t.Fatalf("update post: %v", err)
	}
	if updated.Image != nil {
		t.Fatalf("expected malformed image stored as null, got %v", *updated.Image)
	}
}
