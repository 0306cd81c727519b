package services

import (
	"context"
	"fmt"

	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"gorm.io/gorm"
)

type NotificationService struct {
	db      *gorm.DB
	mailer  Mailer
	siteURL string
}

func NewNotificationService(d *gorm.DB, mailer Mailer, siteURL string) *NotificationService {
	return &NotificationService{db: d, mailer: mailer, siteURL: siteURL}
}

// CommentCreated notifies the article author about a new top-level comment,
// or the parent's author about a reply. Nobody is notified about their own
// comment. Failures are logged and never surface to the commenter.
func (s *NotificationService) CommentCreated(ctx context.Context, article *models.Article, comment, parent *models.Comment) {
	log := logger.WithContext("notification", "comment_created")

	var receiverID uint
	typ := models.NotificationTypeCommentArticle
	message := fmt.Sprintf("%s 评论了你的文章《%s》", comment.AuthorName(), article.Title)
	if parent != nil {
		if parent.AuthorID == nil {
			return
		}
		receiverID = *parent.AuthorID
		typ = models.NotificationTypeReplyComment
		message = fmt.Sprintf("%s 回复了你在《%s》下的评论", comment.AuthorName(), article.Title)
	} else {
		receiverID = article.AuthorID
	}

	if comment.AuthorID != nil && *comment.AuthorID == receiverID {
		return
	}

	link := fmt.Sprintf("/article/%s#comment-%d", article.Slug, comment.ID)
	articleID, commentID := article.ID, comment.ID
	n := models.Notification{
		UserID:    receiverID,
		ActorID:   comment.AuthorID,
		ActorName: comment.AuthorName(),
		Type:      typ,
		ArticleID: &articleID,
		CommentID: &commentID,
		Link:      link,
		Message:   message,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		log.WithError(err).WithField("receiver", receiverID).Warn("Failed to create notification")
		return
	}

	if s.mailer == nil {
		return
	}
	var receiver models.User
	if err := s.db.WithContext(ctx).Select("id", "email").First(&receiver, receiverID).Error; err != nil {
		log.WithError(err).Warn("Failed to load notification receiver")
		return
	}
	mail := CommentMail{
		Actor:        comment.AuthorName(),
		ArticleTitle: article.Title,
		Content:      utils.PlainText(comment.Content, 200),
		Link:         s.siteURL + link,
	}
	if parent != nil {
		mail.ParentContent = utils.PlainText(parent.Content, 200)
	}
	s.mailer.SendCommentNotification(receiver.Email, mail)
}

func (s *NotificationService) List(ctx context.Context, userID uint, offset, limit int) ([]models.Notification, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Notification
	err := q.Preload("Actor").Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) int64 {
	var count int64
	s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count)
	return count
}

// MarkRead marks one of userID's notifications as read and returns its link.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (string, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return "", notFound(err)
	}
	if !n.IsRead {
		if err := s.db.WithContext(ctx).Model(&n).UpdateColumn("is_read", true).Error; err != nil {
			return "", err
		}
	}
	return n.Link, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		UpdateColumn("is_read", true).Error
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
