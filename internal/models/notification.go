package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeCommentArticle NotificationType = "comment_article"
	NotificationTypeReplyComment   NotificationType = "reply_comment"
	NotificationTypeSystem         NotificationType = "system"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"` // Receiver
	User      User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ActorID   *uint            `gorm:"index" json:"actor_id"` // Sender, nil for guests
	Actor     *User            `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"actor,omitempty"`
	ActorName string           `gorm:"size:150" json:"actor_name"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	ArticleID *uint            `gorm:"index" json:"article_id"`
	CommentID *uint            `gorm:"index" json:"comment_id"`
	Link      string           `gorm:"size:300" json:"link"`
	Message   string           `gorm:"type:text" json:"message"`
	IsRead    bool             `gorm:"not null;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
