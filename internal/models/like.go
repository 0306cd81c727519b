package models

import (
	"time"
)

// ArticleLike 文章点赞，每个用户对同一文章只有一条
type ArticleLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"not null;index;uniqueIndex:idx_article_like_user" json:"article_id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_article_like_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentLike 评论点赞
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;index;uniqueIndex:idx_comment_like_user" json:"comment_id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_comment_like_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
