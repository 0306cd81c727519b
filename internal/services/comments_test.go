package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	p.events = append(p.events, evt)
	return nil
}

func guestInput(articleID uint, ip string) CommentInput {
	return CommentInput{
		ArticleID:  articleID,
		Content:    "很有启发的文章",
		GuestName:  "路人甲",
		GuestEmail: "guest@example.com",
		IP:         ip,
		UserAgent:  "test-agent",
	}
}

var ipSeq atomic.Uint32

// memberInput gives every call its own address so tests stay clear of the rate limit.
func memberInput(articleID uint, user *models.User, content string) CommentInput {
	n := ipSeq.Add(1)
	return CommentInput{
		ArticleID: articleID,
		Content:   content,
		User:      user,
		IP:        fmt.Sprintf("10.0.%d.%d", n/250, n%250),
	}
}

func TestCommentSubmit(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	article := testutil.CreateArticle(t, d, author, "Hello World")
	svc := NewCommentService(d)

	t.Run("guest requires name and email", func(t *testing.T) {
		in := guestInput(article.ID, "1.1.1.1")
		in.GuestName = ""
		_, err := svc.Submit(ctx, in)
		assert.ErrorIs(t, err, ErrGuestIdentity)

		in = guestInput(article.ID, "1.1.1.1")
		in.GuestEmail = "  "
		_, err = svc.Submit(ctx, in)
		assert.ErrorIs(t, err, ErrGuestIdentity)

		in = guestInput(article.ID, "1.1.1.1")
		in.GuestEmail = "not-an-email"
		_, err = svc.Submit(ctx, in)
		assert.ErrorIs(t, err, ErrGuestIdentity)
	})

	t.Run("guest comment is stored with identity", func(t *testing.T) {
		c, err := svc.Submit(ctx, guestInput(article.ID, "1.1.1.2"))
		require.NoError(t, err)
		assert.True(t, c.IsGuest())
		assert.Equal(t, "路人甲", c.AuthorName())
		assert.Equal(t, "1.1.1.2", c.UserIP)
		assert.Equal(t, "test-agent", c.UserAgent)
		assert.True(t, c.IsApproved)
	})

	t.Run("content bounds", func(t *testing.T) {
		_, err := svc.Submit(ctx, memberInput(article.ID, reader, "   "))
		assert.ErrorIs(t, err, ErrInvalidComment)

		_, err = svc.Submit(ctx, memberInput(article.ID, reader, strings.Repeat("字", models.CommentMaxLength+1)))
		assert.ErrorIs(t, err, ErrInvalidComment)
	})

	t.Run("closed article", func(t *testing.T) {
		closed := testutil.CreateArticle(t, d, author, "Closed", func(a *models.Article) { a.AllowComments = false })
		_, err := svc.Submit(ctx, memberInput(closed.ID, reader, "hi"))
		assert.ErrorIs(t, err, ErrCommentsClosed)
		assert.Equal(t, "该文章已关闭评论。", err.Error())
	})

	t.Run("draft article", func(t *testing.T) {
		draft := testutil.CreateArticle(t, d, author, "Draft", func(a *models.Article) { a.Status = models.StatusDraft })
		_, err := svc.Submit(ctx, memberInput(draft.ID, reader, "hi"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("top-level comment increments comment_count", func(t *testing.T) {
		a := testutil.CreateArticle(t, d, author, "Counted")
		_, err := svc.Submit(ctx, memberInput(a.ID, reader, "first"))
		require.NoError(t, err)
		assert.Equal(t, 1, testutil.Reload[models.Article](t, d, a.ID).CommentCount)
	})

	t.Run("guest comments disabled by author", func(t *testing.T) {
		strict := testutil.CreateUser(t, d, "strict")
		require.NoError(t, d.Model(&models.UserProfile{}).Where("user_id = ?", strict.ID).
			Update("allow_guest_comments", false).Error)
		a := testutil.CreateArticle(t, d, strict, "Members only")
		_, err := svc.Submit(ctx, guestInput(a.ID, "1.1.1.3"))
		assert.ErrorIs(t, err, ErrGuestCommentsDisabled)
	})
}

func TestCommentRateLimit(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	article := testutil.CreateArticle(t, d, author, "Busy")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	svc := NewCommentService(d, WithClock(func() time.Time { return now }))

	for i := 0; i < CommentRateLimit; i++ {
		_, err := svc.Submit(ctx, guestInput(article.ID, "2.2.2.2"))
		require.NoError(t, err)
		now = now.Add(10 * time.Second)
	}

	_, err := svc.Submit(ctx, guestInput(article.ID, "2.2.2.2"))
	assert.ErrorIs(t, err, ErrRateLimited)

	// 其他 IP 不受影响
	_, err = svc.Submit(ctx, guestInput(article.ID, "2.2.2.3"))
	assert.NoError(t, err)

	// 窗口过去后恢复
	now = now.Add(CommentRateWindow)
	_, err = svc.Submit(ctx, guestInput(article.ID, "2.2.2.2"))
	assert.NoError(t, err)

	assert.Equal(t, 5, testutil.Reload[models.Article](t, d, article.ID).CommentCount)
}

func TestCommentModeration(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	staff := testutil.CreateStaff(t, d, "admin")
	article := testutil.CreateArticle(t, d, author, "Moderated")

	t.Run("guests mode holds guest comments", func(t *testing.T) {
		svc := NewCommentService(d, WithModeration(config.ModerationGuests))
		guest, err := svc.Submit(ctx, guestInput(article.ID, "3.3.3.1"))
		require.NoError(t, err)
		assert.False(t, guest.IsApproved)

		member, err := svc.Submit(ctx, memberInput(article.ID, author, "member"))
		require.NoError(t, err)
		assert.True(t, member.IsApproved)
	})

	t.Run("all mode approves staff only", func(t *testing.T) {
		svc := NewCommentService(d, WithModeration(config.ModerationAll))
		member, err := svc.Submit(ctx, memberInput(article.ID, author, "member"))
		require.NoError(t, err)
		assert.False(t, member.IsApproved)

		byStaff, err := svc.Submit(ctx, memberInput(article.ID, staff, "staff"))
		require.NoError(t, err)
		assert.True(t, byStaff.IsApproved)
	})
}

func TestCommentReply(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	article := testutil.CreateArticle(t, d, author, "Threads")
	other := testutil.CreateArticle(t, d, author, "Other")
	svc := NewCommentService(d)

	parent, err := svc.Submit(ctx, memberInput(article.ID, author, "parent"))
	require.NoError(t, err)

	reply, err := svc.Reply(ctx, parent.ID, memberInput(0, reader, "reply"))
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)
	assert.Equal(t, article.ID, reply.ArticleID)

	assert.Equal(t, 1, testutil.Reload[models.Comment](t, d, parent.ID).ReplyCount)
	// 回复不计入文章评论数
	assert.Equal(t, 1, testutil.Reload[models.Article](t, d, article.ID).CommentCount)

	t.Run("parent from another article", func(t *testing.T) {
		in := memberInput(other.ID, reader, "misplaced")
		in.ParentID = &parent.ID
		_, err := svc.Submit(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidComment)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.Reply(ctx, 9999, memberInput(0, reader, "orphan"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCommentToggleLike(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	article := testutil.CreateArticle(t, d, author, "Likes")
	pub := &recordingPublisher{}
	svc := NewCommentService(d, WithPublisher(pub))

	c, err := svc.Submit(ctx, memberInput(article.ID, author, "like me"))
	require.NoError(t, err)

	res, err := svc.ToggleLike(ctx, c.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, LikeCount: 1}, res)

	res, err = svc.ToggleLike(ctx, c.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: false, LikeCount: 0}, res)

	var likes int64
	d.Model(&models.CommentLike{}).Where("comment_id = ?", c.ID).Count(&likes)
	assert.Zero(t, likes)

	t.Run("counter never goes below zero", func(t *testing.T) {
		require.NoError(t, d.Create(&models.CommentLike{CommentID: c.ID, UserID: author.ID}).Error)
		res, err := svc.ToggleLike(ctx, c.ID, author.ID)
		require.NoError(t, err)
		assert.False(t, res.Liked)
		assert.Equal(t, 0, res.LikeCount)
	})

	t.Run("unknown comment", func(t *testing.T) {
		_, err := svc.ToggleLike(ctx, 9999, reader.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	types := make([]string, 0, len(pub.events))
	for _, e := range pub.events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{EventCommentCreated, EventCommentLiked, EventCommentUnliked, EventCommentUnliked}, types)
}

func TestCommentTogglePin(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	staff := testutil.CreateStaff(t, d, "admin")
	article := testutil.CreateArticle(t, d, author, "Pins")
	svc := NewCommentService(d)

	c, err := svc.Submit(ctx, memberInput(article.ID, reader, "pin me"))
	require.NoError(t, err)

	_, err = svc.TogglePin(ctx, c.ID, reader)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.TogglePin(ctx, c.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	pinned, err := svc.TogglePin(ctx, c.ID, author)
	require.NoError(t, err)
	assert.True(t, pinned)

	pinned, err = svc.TogglePin(ctx, c.ID, staff)
	require.NoError(t, err)
	assert.False(t, pinned)
}

func TestCommentDelete(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	staff := testutil.CreateStaff(t, d, "admin")
	svc := NewCommentService(d)

	t.Run("deleting a parent removes its replies", func(t *testing.T) {
		article := testutil.CreateArticle(t, d, author, "Delete parent")
		parent, err := svc.Submit(ctx, memberInput(article.ID, reader, "parent"))
		require.NoError(t, err)
		_, err = svc.Submit(ctx, memberInput(article.ID, author, "sibling"))
		require.NoError(t, err)
		reply, err := svc.Reply(ctx, parent.ID, memberInput(0, author, "reply"))
		require.NoError(t, err)
		nested, err := svc.Reply(ctx, reply.ID, memberInput(0, staff, "nested"))
		require.NoError(t, err)
		_, err = svc.ToggleLike(ctx, nested.ID, reader.ID)
		require.NoError(t, err)

		assert.Equal(t, 2, testutil.Reload[models.Article](t, d, article.ID).CommentCount)

		_, err = svc.Delete(ctx, parent.ID, reader)
		require.NoError(t, err)

		var remaining int64
		d.Model(&models.Comment{}).Where("id IN ?", []uint{parent.ID, reply.ID, nested.ID}).Count(&remaining)
		assert.Zero(t, remaining)

		var likes int64
		d.Model(&models.CommentLike{}).Where("comment_id = ?", nested.ID).Count(&likes)
		assert.Zero(t, likes)

		assert.Equal(t, 1, testutil.Reload[models.Article](t, d, article.ID).CommentCount)
	})

	t.Run("comment count floors at zero", func(t *testing.T) {
		article := testutil.CreateArticle(t, d, author, "Floor")
		c, err := svc.Submit(ctx, memberInput(article.ID, reader, "only"))
		require.NoError(t, err)
		require.NoError(t, d.Model(&models.Article{}).Where("id = ?", article.ID).
			UpdateColumn("comment_count", 0).Error)

		_, err = svc.Delete(ctx, c.ID, reader)
		require.NoError(t, err)
		assert.Equal(t, 0, testutil.Reload[models.Article](t, d, article.ID).CommentCount)
	})

	t.Run("deleting a reply decrements reply_count", func(t *testing.T) {
		article := testutil.CreateArticle(t, d, author, "Delete reply")
		parent, err := svc.Submit(ctx, memberInput(article.ID, author, "parent"))
		require.NoError(t, err)
		reply, err := svc.Reply(ctx, parent.ID, memberInput(0, reader, "reply"))
		require.NoError(t, err)
		assert.Equal(t, 1, testutil.Reload[models.Comment](t, d, parent.ID).ReplyCount)

		_, err = svc.Delete(ctx, reply.ID, staff)
		require.NoError(t, err)
		assert.Equal(t, 0, testutil.Reload[models.Comment](t, d, parent.ID).ReplyCount)
		assert.Equal(t, 1, testutil.Reload[models.Article](t, d, article.ID).CommentCount)
	})

	t.Run("only author or staff", func(t *testing.T) {
		article := testutil.CreateArticle(t, d, author, "Protected")
		c, err := svc.Submit(ctx, memberInput(article.ID, reader, "mine"))
		require.NoError(t, err)

		_, err = svc.Delete(ctx, c.ID, author)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = svc.Delete(ctx, c.ID, nil)
		assert.ErrorIs(t, err, ErrForbidden)

		guest, err := svc.Submit(ctx, guestInput(article.ID, "4.4.4.4"))
		require.NoError(t, err)
		_, err = svc.Delete(ctx, guest.ID, reader)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestCommentThread(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	article := testutil.CreateArticle(t, d, author, "Thread")

	now := time.Now()
	svc := NewCommentService(d, WithClock(func() time.Time { now = now.Add(time.Second); return now }))

	first, err := svc.Submit(ctx, memberInput(article.ID, reader, "first"))
	require.NoError(t, err)
	hidden, err := svc.Submit(ctx, memberInput(article.ID, reader, "hidden"))
	require.NoError(t, err)
	hiddenReply, err := svc.Reply(ctx, hidden.ID, memberInput(0, author, "under hidden"))
	require.NoError(t, err)
	last, err := svc.Submit(ctx, memberInput(article.ID, author, "last"))
	require.NoError(t, err)
	reply, err := svc.Reply(ctx, first.ID, memberInput(0, author, "reply"))
	require.NoError(t, err)

	_, err = svc.ToggleApproved(ctx, hidden.ID)
	require.NoError(t, err)
	_, err = svc.TogglePin(ctx, last.ID, author)
	require.NoError(t, err)

	tree, err := svc.Thread(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, last.ID, tree[0].ID, "pinned first")
	assert.Equal(t, first.ID, tree[1].ID)
	require.Len(t, tree[1].Replies, 1)
	assert.Equal(t, reply.ID, tree[1].Replies[0].ID)

	for _, root := range tree {
		assert.NotEqual(t, hidden.ID, root.ID)
		for _, r := range root.Replies {
			assert.NotEqual(t, hiddenReply.ID, r.ID)
		}
	}

	t.Run("top level listing skips unapproved", func(t *testing.T) {
		list, total, err := svc.TopLevel(ctx, &article.ID, 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, list, 2)
	})

	t.Run("unapproved detail visible to owner only", func(t *testing.T) {
		_, err := svc.Get(ctx, hidden.ID, nil)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = svc.Get(ctx, hidden.ID, author)
		assert.ErrorIs(t, err, ErrNotFound)
		got, err := svc.Get(ctx, hidden.ID, reader)
		require.NoError(t, err)
		assert.Equal(t, hidden.ID, got.ID)
	})

	t.Run("moderation queue", func(t *testing.T) {
		queue, err := svc.Queue(ctx, 10)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, hidden.ID, queue[0].ID)

		spam, err := svc.ToggleSpam(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, spam)
		queue, err = svc.Queue(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, queue, 2)
	})
}

func TestBuildTree(t *testing.T) {
	id := func(n uint) *uint { return &n }
	flat := []*models.Comment{
		{ID: 1},
		{ID: 2, ParentID: id(1)},
		{ID: 3, ParentID: id(2)},
		{ID: 4, ParentID: id(99)},
		{ID: 5, ParentID: id(4)},
		{ID: 6},
	}

	roots := BuildTree(flat)
	require.Len(t, roots, 2)
	assert.Equal(t, uint(1), roots[0].ID)
	assert.Equal(t, uint(6), roots[1].ID)
	require.Len(t, roots[0].Replies, 1)
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, uint(3), roots[0].Replies[0].Replies[0].ID)
}

func TestCommentNotifications(t *testing.T) {
	d := testutil.NewDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, d, "author")
	reader := testutil.CreateUser(t, d, "reader")
	article := testutil.CreateArticle(t, d, author, "Notify")
	mailer := &fakeMailer{}
	notifier := NewNotificationService(d, mailer, "https://blog.example.com")
	svc := NewCommentService(d, WithNotifier(notifier))

	parent, err := svc.Submit(ctx, memberInput(article.ID, reader, "hello author"))
	require.NoError(t, err)
	_, err = svc.Reply(ctx, parent.ID, memberInput(0, author, "hello reader"))
	require.NoError(t, err)
	// 自己回复自己不通知
	_, err = svc.Reply(ctx, parent.ID, memberInput(0, reader, "self"))
	require.NoError(t, err)

	list, total, err := notifier.List(ctx, author.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.NotificationTypeCommentArticle, list[0].Type)
	assert.Contains(t, list[0].Link, "#comment-")

	list, total, err = notifier.List(ctx, reader.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.NotificationTypeReplyComment, list[0].Type)

	require.Len(t, mailer.comments, 2)
	assert.Equal(t, "author@example.com", mailer.comments[0].to)
	assert.Equal(t, "https://blog.example.com"+list[0].Link, mailer.comments[1].msg.Link)

	t.Run("deleting a comment removes its notifications", func(t *testing.T) {
		_, err := svc.Delete(ctx, parent.ID, reader)
		require.NoError(t, err)
		var count int64
		d.Model(&models.Notification{}).Count(&count)
		assert.Zero(t, count)
	})
}
