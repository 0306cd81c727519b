package services

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecountArticle(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	article := testutil.CreateArticle(t, d, author, "Drifted")
	comments := NewCommentService(d)
	articles := NewArticleService(d, nil)

	parent, err := comments.Submit(ctx, memberInput(article.ID, reader, "parent"))
	require.NoError(t, err)
	_, err = comments.Reply(ctx, parent.ID, memberInput(0, author, "reply"))
	require.NoError(t, err)
	_, err = comments.ToggleLike(ctx, parent.ID, author.ID)
	require.NoError(t, err)
	_, err = articles.ToggleLike(ctx, article.ID, reader.ID)
	require.NoError(t, err)

	require.NoError(t, d.Model(&models.Article{}).Where("id = ?", article.ID).
		UpdateColumns(map[string]any{"comment_count": 9, "like_count": 0}).Error)
	require.NoError(t, d.Model(&models.Comment{}).Where("id = ?", parent.ID).
		UpdateColumns(map[string]any{"reply_count": 0, "like_count": 5}).Error)

	svc := NewCounterService(d)
	require.NoError(t, svc.RecountArticle(ctx, article.ID))

	a := testutil.Reload[models.Article](t, d, article.ID)
	assert.Equal(t, 1, a.CommentCount)
	assert.Equal(t, 1, a.LikeCount)
	c := testutil.Reload[models.Comment](t, d, parent.ID)
	assert.Equal(t, 1, c.ReplyCount)
	assert.Equal(t, 1, c.LikeCount)

	n, err := svc.RecountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCounterWorker(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "author")
	article := testutil.CreateArticle(t, d, author, "Queued", func(a *models.Article) { a.CommentCount = 4 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewCounterService(d)
	svc.Start(ctx)

	svc.ScheduleArticle(article.ID)
	svc.ScheduleArticle(article.ID)

	assert.Eventually(t, func() bool {
		var count int
		d.Model(&models.Article{}).Select("comment_count").Where("id = ?", article.ID).Scan(&count)
		return count == 0
	}, 3*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.pending) == 0
	}, time.Second, 20*time.Millisecond)
}
