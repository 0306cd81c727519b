package models

import (
	"time"
	"unicode/utf8"
)

type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
	StatusArchived  ArticleStatus = "archived"
)

func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

type Article struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Title         string        `gorm:"size:200;not null" json:"title"`
	Slug          string        `gorm:"uniqueIndex;size:220;not null" json:"slug"`
	AuthorID      uint          `gorm:"not null;index" json:"author_id"`
	Author        User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Content       string        `gorm:"type:text" json:"content"` // Markdown
	Excerpt       string        `gorm:"size:500" json:"excerpt"`
	CategoryID    *uint         `gorm:"index" json:"category_id"`
	Category      *Category     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
	Tags          []Tag         `gorm:"many2many:article_tags;" json:"tags"`
	FeaturedImage string        `json:"featured_image"`
	IsFeatured    bool          `gorm:"index" json:"is_featured"`
	ViewCount     int           `gorm:"default:0" json:"view_count"`
	LikeCount     int           `gorm:"default:0" json:"like_count"`
	CommentCount  int           `gorm:"default:0" json:"comment_count"` // 顶层评论数
	ReadingTime   int           `gorm:"default:1" json:"reading_time"`  // 分钟
	Status        ArticleStatus `gorm:"type:varchar(10);not null;index" json:"status"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PublishedAt   *time.Time    `gorm:"index" json:"published_at"`

	MetaTitle       string `gorm:"size:200" json:"meta_title"`
	MetaDescription string `gorm:"size:300" json:"meta_description"`
	MetaKeywords    string `gorm:"size:200" json:"meta_keywords"`
	AllowComments   bool   `gorm:"not null" json:"allow_comments"`
	AllowSharing    bool   `gorm:"not null" json:"allow_sharing"`
}

func (a *Article) IsPublished() bool {
	return a.Status == StatusPublished
}

// ComputeReadingTime assumes roughly 200 characters per minute.
func (a *Article) ComputeReadingTime() {
	n := utf8.RuneCountInString(a.Content) / 200
	if n < 1 {
		n = 1
	}
	a.ReadingTime = n
}

// MarkPublished moves the article to published and stamps PublishedAt once.
func (a *Article) MarkPublished(now time.Time) {
	a.Status = StatusPublished
	if a.PublishedAt == nil {
		t := now
		a.PublishedAt = &t
	}
}

// DisplayTime is the publication time, falling back to creation time.
func (a *Article) DisplayTime() time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}
