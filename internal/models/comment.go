package models

import (
	"time"
)

const CommentMaxLength = 1000

type Comment struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	ArticleID uint     `gorm:"not null;index" json:"article_id"`
	Article   Article  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID  *uint    `gorm:"index" json:"author_id"` // 游客评论为空
	Author    *User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author,omitempty"`
	ParentID  *uint    `gorm:"index" json:"parent_id"` // Nullable for top-level comments
	Parent    *Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content   string   `gorm:"type:text;not null" json:"content"`

	IsApproved bool `gorm:"not null;index" json:"is_approved"`
	IsSpam     bool `gorm:"not null" json:"is_spam"`
	IsPinned   bool `gorm:"not null" json:"is_pinned"`

	GuestName    string `gorm:"size:50" json:"guest_name"`
	GuestEmail   string `gorm:"size:254" json:"-"`
	GuestWebsite string `gorm:"size:200" json:"guest_website"`

	LikeCount  int `gorm:"default:0" json:"like_count"`
	ReplyCount int `gorm:"default:0" json:"reply_count"` // 直接子评论数

	UserIP    string    `gorm:"size:45;index" json:"-"`
	UserAgent string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 组装评论树时填充
	Replies []*Comment `gorm:"-" json:"replies,omitempty"`
}

// AuthorName returns the username for members and the guest name otherwise.
func (c *Comment) AuthorName() string {
	if c.Author != nil && c.Author.Username != "" {
		return c.Author.Username
	}
	return c.GuestName
}

func (c *Comment) IsGuest() bool {
	return c.AuthorID == nil
}

func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// OwnedBy reports whether the comment was written by the given member.
func (c *Comment) OwnedBy(u *User) bool {
	return u != nil && c.AuthorID != nil && *c.AuthorID == u.ID
}
