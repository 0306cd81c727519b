package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email       string     `gorm:"uniqueIndex;not null" json:"email"` // 登录凭据
	Password    string     `gorm:"not null" json:"-"`                 // Hash
	Avatar      string     `json:"avatar"`                            // 头像路径
	Bio         string     `gorm:"size:500" json:"bio"`
	Website     string     `gorm:"size:200" json:"website"`
	Location    string     `gorm:"size:100" json:"location"`
	BirthDate   *time.Time `json:"birth_date"`
	GithubURL   string     `gorm:"size:200" json:"github_url"`
	TwitterURL  string     `gorm:"size:200" json:"twitter_url"`
	LinkedinURL string     `gorm:"size:200" json:"linkedin_url"`
	Role        string     `gorm:"size:20;default:'user';not null" json:"role"` // user, staff
	IsVerified  bool       `json:"is_verified"`                                 // 邮箱是否已验证
	IsActive    bool       `gorm:"not null" json:"is_active"`
	GoogleID    string     `gorm:"index" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Profile *UserProfile `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"profile,omitempty"`
}

func (u *User) IsStaff() bool {
	return u != nil && u.Role == RoleStaff
}

// CanModify reports whether u may edit content owned by ownerID.
func (u *User) CanModify(ownerID uint) bool {
	if u == nil {
		return false
	}
	return u.ID == ownerID || u.IsStaff()
}

// UserProfile 用户博客偏好设置
type UserProfile struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Theme              string    `gorm:"size:10;not null" json:"theme"` // light, dark, auto
	BlogTitle          string    `gorm:"size:100" json:"blog_title"`
	BlogDescription    string    `gorm:"size:500" json:"blog_description"`
	ShowEmail          bool      `gorm:"not null" json:"show_email"`
	AllowComments      bool      `gorm:"not null" json:"allow_comments"`
	AllowGuestComments bool      `gorm:"not null" json:"allow_guest_comments"`
	PostsPerPage       int       `gorm:"not null" json:"posts_per_page"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultProfile returns the preferences assigned at registration.
func DefaultProfile(userID uint) UserProfile {
	return UserProfile{
		UserID:             userID,
		Theme:              "light",
		AllowComments:      true,
		AllowGuestComments: true,
		PostsPerPage:       10,
	}
}
