package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/config"
	"inkwell/internal/logger"
	"inkwell/internal/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// CommentRateLimit comments per IP are allowed inside CommentRateWindow.
	CommentRateLimit  = 3
	CommentRateWindow = time.Minute

	guestNameMaxLength = 50
	userAgentMaxLength = 512
)

// CounterScheduler queues an article for asynchronous counter reconciliation.
type CounterScheduler interface {
	ScheduleArticle(articleID uint)
}

type CommentInput struct {
	ArticleID    uint
	ParentID     *uint
	Content      string
	GuestName    string
	GuestEmail   string
	GuestWebsite string
	User         *models.User // nil for guests
	IP           string
	UserAgent    string
}

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

type CommentService struct {
	db         *gorm.DB
	moderation string
	events     Publisher
	notifier   *NotificationService
	counters   CounterScheduler
	validate   *validator.Validate
	now        func() time.Time
}

type CommentOption func(*CommentService)

func WithModeration(mode string) CommentOption {
	return func(s *CommentService) { s.moderation = mode }
}

func WithPublisher(p Publisher) CommentOption {
	return func(s *CommentService) { s.events = p }
}

func WithNotifier(n *NotificationService) CommentOption {
	return func(s *CommentService) { s.notifier = n }
}

func WithCounterScheduler(c CounterScheduler) CommentOption {
	return func(s *CommentService) { s.counters = c }
}

func WithClock(now func() time.Time) CommentOption {
	return func(s *CommentService) { s.now = now }
}

func NewCommentService(d *gorm.DB, opts ...CommentOption) *CommentService {
	s := &CommentService{
		db:         d,
		moderation: config.ModerationNone,
		events:     NopPublisher{},
		validate:   validator.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and stores a new comment or reply. The parent's reply
// counter (or the article's comment counter for top-level comments) is
// updated in the same transaction as the insert.
func (s *CommentService) Submit(ctx context.Context, in CommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, invalid(ErrInvalidComment, "content", "评论内容不能为空。")
	}
	if utf8.RuneCountInString(content) > models.CommentMaxLength {
		return nil, invalid(ErrInvalidComment, "content", "评论内容不能超过1000个字符。")
	}

	var article models.Article
	if err := s.db.WithContext(ctx).First(&article, in.ArticleID).Error; err != nil {
		return nil, notFound(err)
	}
	if !article.IsPublished() {
		return nil, ErrNotFound
	}
	if !article.AllowComments {
		return nil, ErrCommentsClosed
	}

	comment := &models.Comment{
		ArticleID:  article.ID,
		Content:    content,
		UserIP:     in.IP,
		UserAgent:  truncateRunes(in.UserAgent, userAgentMaxLength),
		IsApproved: s.autoApprove(in.User),
	}
	if in.User != nil {
		uid := in.User.ID
		comment.AuthorID = &uid
	} else {
		if err := s.checkGuest(ctx, &article, in); err != nil {
			return nil, err
		}
		comment.GuestName = strings.TrimSpace(in.GuestName)
		comment.GuestEmail = strings.TrimSpace(in.GuestEmail)
		comment.GuestWebsite = strings.TrimSpace(in.GuestWebsite)
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent = &models.Comment{}
		if err := s.db.WithContext(ctx).Preload("Author").First(parent, *in.ParentID).Error; err != nil {
			return nil, notFound(err)
		}
		if parent.ArticleID != article.ID {
			return nil, invalid(ErrInvalidComment, "parent", "回复的评论不属于该文章。")
		}
		if !parent.IsApproved && !in.User.IsStaff() {
			return nil, ErrNotFound
		}
		comment.ParentID = &parent.ID
	}

	now := s.now()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IP != "" {
			var recent int64
			if err := tx.Model(&models.Comment{}).
				Where("user_ip = ? AND created_at >= ?", in.IP, now.Add(-CommentRateWindow)).
				Count(&recent).Error; err != nil {
				return err
			}
			if recent >= CommentRateLimit {
				return ErrRateLimited
			}
		}

		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return err
		}

		if parent != nil {
			return tx.Model(&models.Comment{}).Where("id = ?", parent.ID).
				UpdateColumn("reply_count", gorm.Expr("reply_count + ?", 1)).Error
		}
		return tx.Model(&models.Article{}).Where("id = ?", article.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}

	comment.Author = in.User
	comment.Article = article
	invalidateArticleCaches(article.Slug)
	s.publish(ctx, EventCommentCreated, article.ID, comment.ID, comment.AuthorID)
	if s.notifier != nil && comment.IsApproved {
		s.notifier.CommentCreated(ctx, &article, comment, parent)
	}
	return comment, nil
}

// Reply submits a reply to parentID on the parent's article.
func (s *CommentService) Reply(ctx context.Context, parentID uint, in CommentInput) (*models.Comment, error) {
	var parent models.Comment
	if err := s.db.WithContext(ctx).Select("id", "article_id").First(&parent, parentID).Error; err != nil {
		return nil, notFound(err)
	}
	in.ArticleID = parent.ArticleID
	in.ParentID = &parent.ID
	return s.Submit(ctx, in)
}

func (s *CommentService) checkGuest(ctx context.Context, article *models.Article, in CommentInput) error {
	name := strings.TrimSpace(in.GuestName)
	email := strings.TrimSpace(in.GuestEmail)
	website := strings.TrimSpace(in.GuestWebsite)

	if name == "" || email == "" {
		return ErrGuestIdentity
	}
	if utf8.RuneCountInString(name) > guestNameMaxLength {
		return invalid(ErrGuestIdentity, "guest_name", "昵称不能超过50个字符。")
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return invalid(ErrGuestIdentity, "guest_email", "请输入有效的邮箱地址。")
	}
	if website != "" {
		if err := s.validate.Var(website, "url"); err != nil {
			return invalid(ErrInvalidComment, "guest_website", "请输入有效的网址。")
		}
	}

	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", article.AuthorID).Limit(1).Find(&profile).Error; err != nil {
		return err
	}
	if profile.ID != 0 && !profile.AllowGuestComments {
		return ErrGuestCommentsDisabled
	}
	return nil
}

func (s *CommentService) autoApprove(user *models.User) bool {
	switch s.moderation {
	case config.ModerationAll:
		return user.IsStaff()
	case config.ModerationGuests:
		return user != nil
	default:
		return true
	}
}

// ToggleLike likes the comment for userID, or removes an existing like.
func (s *CommentService) ToggleLike(ctx context.Context, commentID, userID uint) (LikeResult, error) {
	var res LikeResult
	var articleID uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Select("id", "article_id").First(&comment, commentID).Error; err != nil {
			return notFound(err)
		}
		articleID = comment.ArticleID

		var existing models.CommentLike
		if err := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Limit(1).Find(&existing).Error; err != nil {
			return err
		}

		q := tx.Model(&models.Comment{}).Where("id = ?", commentID)
		if existing.ID != 0 {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := q.UpdateColumn("like_count", decrementFloor("like_count")).Error; err != nil {
				return err
			}
		} else {
			like := models.CommentLike{CommentID: commentID, UserID: userID, CreatedAt: s.now()}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			if err := q.UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error; err != nil {
				return err
			}
			res.Liked = true
		}

		return tx.Model(&models.Comment{}).Select("like_count").Where("id = ?", commentID).Scan(&res.LikeCount).Error
	})
	if err != nil {
		return LikeResult{}, err
	}

	evt := EventCommentUnliked
	if res.Liked {
		evt = EventCommentLiked
	}
	s.publish(ctx, evt, articleID, commentID, &userID)
	return res, nil
}

// TogglePin flips the pinned flag. Only the article's author or staff may pin.
func (s *CommentService) TogglePin(ctx context.Context, commentID uint, user *models.User) (bool, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Article").First(&comment, commentID).Error; err != nil {
		return false, notFound(err)
	}
	if !user.CanModify(comment.Article.AuthorID) {
		return false, ErrForbidden
	}

	pinned := !comment.IsPinned
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", comment.ID).
		UpdateColumn("is_pinned", pinned).Error; err != nil {
		return false, err
	}
	invalidateArticleCaches(comment.Article.Slug)
	s.publish(ctx, EventCommentPinned, comment.ArticleID, comment.ID, &user.ID)
	return pinned, nil
}

// Delete removes a comment together with its whole reply subtree. Deleting
// a top-level comment decrements the article's comment counter by one;
// deleting a reply decrements its parent's reply counter by one.
func (s *CommentService) Delete(ctx context.Context, commentID uint, user *models.User) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Article").First(&comment, commentID).Error; err != nil {
		return nil, notFound(err)
	}
	if !comment.OwnedBy(user) && !user.IsStaff() {
		return nil, ErrForbidden
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := subtreeIDs(tx, comment.ID)
		if err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", ids).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		if comment.ParentID != nil {
			return tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).
				UpdateColumn("reply_count", decrementFloor("reply_count")).Error
		}
		return tx.Model(&models.Article{}).Where("id = ?", comment.ArticleID).
			UpdateColumn("comment_count", decrementFloor("comment_count")).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateArticleCaches(comment.Article.Slug)
	s.publish(ctx, EventCommentDeleted, comment.ArticleID, comment.ID, &user.ID)
	if s.counters != nil {
		s.counters.ScheduleArticle(comment.ArticleID)
	}
	return &comment, nil
}

// subtreeIDs returns root and every descendant id, breadth first.
func subtreeIDs(tx *gorm.DB, root uint) ([]uint, error) {
	ids := []uint{root}
	frontier := []uint{root}
	for len(frontier) > 0 {
		var children []uint
		if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		ids = append(ids, children...)
		frontier = children
	}
	return ids, nil
}

func (s *CommentService) ToggleApproved(ctx context.Context, commentID uint) (bool, error) {
	return s.toggleFlag(ctx, commentID, "is_approved")
}

func (s *CommentService) ToggleSpam(ctx context.Context, commentID uint) (bool, error) {
	return s.toggleFlag(ctx, commentID, "is_spam")
}

func (s *CommentService) toggleFlag(ctx context.Context, commentID uint, column string) (bool, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Article").First(&comment, commentID).Error; err != nil {
		return false, notFound(err)
	}

	var value bool
	switch column {
	case "is_approved":
		value = !comment.IsApproved
	case "is_spam":
		value = !comment.IsSpam
	default:
		return false, errors.New("unknown comment flag: " + column)
	}

	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", commentID).
		UpdateColumn(column, value).Error; err != nil {
		return false, err
	}
	invalidateArticleCaches(comment.Article.Slug)
	s.publish(ctx, EventCommentModerated, comment.ArticleID, comment.ID, nil)
	return value, nil
}

// Get returns a comment visible to viewer: approved comments for everyone,
// unapproved ones only for their author and staff.
func (s *CommentService) Get(ctx context.Context, commentID uint, viewer *models.User) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Author").Preload("Article").First(&comment, commentID).Error; err != nil {
		return nil, notFound(err)
	}
	if !comment.IsApproved && !comment.OwnedBy(viewer) && !viewer.IsStaff() {
		return nil, ErrNotFound
	}
	return &comment, nil
}

// Thread returns the approved comments of an article as a tree, pinned
// comments first and oldest first otherwise. Replies under an unapproved
// comment are hidden with it.
func (s *CommentService) Thread(ctx context.Context, articleID uint) ([]*models.Comment, error) {
	var flat []*models.Comment
	if err := s.db.WithContext(ctx).Preload("Author").
		Where("article_id = ? AND is_approved = ?", articleID, true).
		Order("is_pinned DESC, created_at ASC, id ASC").
		Find(&flat).Error; err != nil {
		return nil, err
	}
	return BuildTree(flat), nil
}

// BuildTree links a flat, already ordered list into parent/child trees.
// Comments whose parent is absent from the list are dropped.
func BuildTree(flat []*models.Comment) []*models.Comment {
	byID := make(map[uint]*models.Comment, len(flat))
	for _, c := range flat {
		c.Replies = nil
		byID[c.ID] = c
	}

	roots := make([]*models.Comment, 0)
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		if p, ok := byID[*c.ParentID]; ok {
			p.Replies = append(p.Replies, c)
		}
	}

	// 父评论未审核时，整棵子树不可见
	visible := make(map[uint]bool, len(flat))
	var mark func(cs []*models.Comment)
	mark = func(cs []*models.Comment) {
		for _, c := range cs {
			visible[c.ID] = true
			mark(c.Replies)
		}
	}
	mark(roots)
	for _, c := range flat {
		if !visible[c.ID] {
			c.Replies = nil
		}
	}
	return roots
}

// TopLevel lists approved top-level comments, optionally for one article.
func (s *CommentService) TopLevel(ctx context.Context, articleID *uint, offset, limit int) ([]models.Comment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("is_approved = ? AND parent_id IS NULL", true)
	if articleID != nil {
		q = q.Where("article_id = ?", *articleID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := q.Preload("Author").
		Order("is_pinned DESC, created_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&comments).Error
	return comments, total, err
}

// Replies lists the approved direct replies of a comment.
func (s *CommentService) Replies(ctx context.Context, parentID uint) ([]models.Comment, error) {
	var replies []models.Comment
	err := s.db.WithContext(ctx).Preload("Author").
		Where("parent_id = ? AND is_approved = ?", parentID, true).
		Order("is_pinned DESC, created_at ASC, id ASC").
		Find(&replies).Error
	return replies, err
}

// Recent returns the latest approved comments on published articles.
func (s *CommentService) Recent(ctx context.Context, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("Author").Preload("Article").
		Joins("JOIN articles ON articles.id = comments.article_id").
		Where("comments.is_approved = ? AND articles.status = ?", true, models.StatusPublished).
		Order("comments.created_at DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// Queue lists comments waiting for a moderator: unapproved or marked spam.
func (s *CommentService) Queue(ctx context.Context, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("Author").Preload("Article").
		Where("is_approved = ? OR is_spam = ?", false, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

func (s *CommentService) publish(ctx context.Context, typ string, articleID, commentID uint, userID *uint) {
	evt := Event{Type: typ, ArticleID: articleID, CommentID: commentID, At: s.now()}
	if userID != nil {
		evt.UserID = *userID
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		logger.WithContext("comments", "publish").WithError(err).
			WithField("event", typ).Warn("Failed to publish comment event")
	}
}

// decrementFloor decrements column without letting it drop below zero.
func decrementFloor(column string) clause.Expr {
	return gorm.Expr("CASE WHEN " + column + " > 0 THEN " + column + " - 1 ELSE 0 END")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
