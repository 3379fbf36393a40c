package db

import "gorm.io/gorm"

// Post is a news/blog article authored through the admin back office.
//
// Categories and Tags hold the legacy comma-joined strings that older
// consumers of the public API still read; CategoryList and TagList carry
// the structured associations.
type Post struct {
	gorm.Model
	Title        string      `gorm:"not null" json:"title"`
	Slug         string      `gorm:"uniqueIndex;not null" json:"slug"`
	Summary      string      `json:"summary"`
	Content      string      `json:"content"`
	Image        *string     `json:"image"`
	Published    bool        `gorm:"default:true" json:"published"`
	Featured     bool        `gorm:"default:false" json:"featured"`
	Views        uint        `gorm:"default:0" json:"views"`
	Categories   string      `json:"categories"`
	Tags         string      `json:"tags"`
	UserID       uint        `gorm:"not null" json:"userId"`
	User         User        `json:"author"`
	Images       []PostImage `gorm:"constraint:OnDelete:CASCADE" json:"images"`
	CategoryList []Category  `gorm:"many2many:post_categories;" json:"categoryList"`
	TagList      []Tag       `gorm:"many2many:post_tags;" json:"tagList"`
}

// PostImage is one entry of a post's ordered image set. SortOrder is
// dense and zero-based within the set; the image at order 0 doubles as
// the cover for single-image consumers.
type PostImage struct {
	gorm.Model
	PostID    uint   `gorm:"not null;index" json:"postId"`
	URL       string `gorm:"not null" json:"url"`
	Caption   string `json:"caption"`
	SortOrder int    `gorm:"default:0" json:"sortOrder"`
}
