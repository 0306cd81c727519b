package services

import (
	"context"
	"sync"
	"time"

	"inkwell/internal/logger"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

const (
	counterQueueSize = 1000
	counterBatchSize = 50
	counterInterval  = 500 * time.Millisecond
)

// CounterService recomputes denormalized counters from their source tables.
// Counters are kept up to date transactionally on every write; this worker
// only repairs drift after bulk operations and on a nightly sweep.
type CounterService struct {
	db      *gorm.DB
	queue   chan uint
	pending map[uint]bool
	mu      sync.Mutex
}

func NewCounterService(d *gorm.DB) *CounterService {
	return &CounterService{
		db:      d,
		queue:   make(chan uint, counterQueueSize),
		pending: make(map[uint]bool),
	}
}

// Start runs the background worker until ctx is cancelled.
func (s *CounterService) Start(ctx context.Context) {
	go s.worker(ctx)
}

// ScheduleArticle queues an article for reconciliation. Articles already
// waiting in the queue are not queued twice.
func (s *CounterService) ScheduleArticle(articleID uint) {
	s.mu.Lock()
	if s.pending[articleID] {
		s.mu.Unlock()
		return
	}
	s.pending[articleID] = true
	s.mu.Unlock()

	select {
	case s.queue <- articleID:
	default:
		s.mu.Lock()
		delete(s.pending, articleID)
		s.mu.Unlock()
		logger.WithContext("counters", "schedule").Warnf("计数队列已满，跳过文章 %d", articleID)
	}
}

func (s *CounterService) worker(ctx context.Context) {
	batch := make([]uint, 0, counterBatchSize)
	ticker := time.NewTicker(counterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				s.processBatch(context.Background(), batch)
			}
			return
		case id := <-s.queue:
			batch = append(batch, id)
			if len(batch) >= counterBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *CounterService) processBatch(ctx context.Context, ids []uint) {
	for _, id := range ids {
		if err := s.RecountArticle(ctx, id); err != nil {
			logger.WithContext("counters", "recount").WithError(err).
				WithField("article_id", id).Error("Failed to recount article")
		}

		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
}

// RecountArticle rewrites the like and comment counters of an article and
// the like and reply counters of its comments.
func (s *CounterService) RecountArticle(ctx context.Context, articleID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`UPDATE articles SET
			like_count = (SELECT COUNT(*) FROM article_likes WHERE article_likes.article_id = articles.id),
			comment_count = (SELECT COUNT(*) FROM comments WHERE comments.article_id = articles.id AND comments.parent_id IS NULL)
			WHERE id = ?`, articleID).Error; err != nil {
			return err
		}
		return tx.Exec(`UPDATE comments SET
			like_count = (SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id),
			reply_count = (SELECT COUNT(*) FROM comments AS c WHERE c.parent_id = comments.id)
			WHERE article_id = ?`, articleID).Error
	})
}

// RecountAll reconciles every article and returns how many were processed.
func (s *CounterService) RecountAll(ctx context.Context) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Article{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.RecountArticle(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// StartNightly runs RecountAll every day at 03:00 until ctx is cancelled.
func (s *CounterService) StartNightly(ctx context.Context) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
			}

			log := logger.WithContext("counters", "nightly")
			n, err := s.RecountAll(ctx)
			if err != nil {
				log.WithError(err).Error("Nightly recount failed")
				continue
			}
			log.Infof("本次校正 %d 篇文章计数", n)
		}
	}()
}
