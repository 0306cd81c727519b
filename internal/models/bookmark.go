package models

import (
	"time"
)

// ArticleBookmark 收藏模型 - 用户收藏文章
type ArticleBookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_bookmark_user_article" json:"user_id"`
	ArticleID uint      `gorm:"not null;index;uniqueIndex:idx_bookmark_user_article" json:"article_id"`
	Article   Article   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"article"`
	CreatedAt time.Time `json:"created_at"`
}
