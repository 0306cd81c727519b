package services

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("未找到。")
	ErrForbidden = errors.New("没有权限执行此操作。")

	ErrCommentsClosed        = errors.New("该文章已关闭评论。")
	ErrRateLimited           = errors.New("评论过于频繁，请稍后再试。")
	ErrGuestIdentity         = errors.New("游客评论必须填写昵称和邮箱。")
	ErrGuestCommentsDisabled = errors.New("作者不允许游客评论。")
	ErrInvalidComment        = errors.New("评论内容无效。")

	ErrInvalidArticle = errors.New("文章内容无效。")

	ErrInvalidAccount   = errors.New("账号信息无效。")
	ErrDuplicateAccount = errors.New("用户名或邮箱已被注册。")
	ErrBadCredentials   = errors.New("邮箱或密码错误。")
	ErrInactiveAccount  = errors.New("账号已被停用。")
	ErrInvalidCode      = errors.New("验证码错误或已过期。")
	ErrInvalidToken     = errors.New("令牌无效或已过期。")

	ErrInvalidImage = errors.New("不支持的图片格式。")
)

// ValidationError carries a user-facing message for one field while still
// matching its category sentinel through errors.Is.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalid(kind error, field, message string) error {
	return &ValidationError{Kind: kind, Field: field, Message: message}
}

// notFound maps gorm's missing-row error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
