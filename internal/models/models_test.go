package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleComputeReadingTime(t *testing.T) {
	a := &Article{Content: "short"}
	a.ComputeReadingTime()
	assert.Equal(t, 1, a.ReadingTime)

	a.Content = strings.Repeat("字", 1000)
	a.ComputeReadingTime()
	assert.Equal(t, 5, a.ReadingTime)
}

func TestArticleMarkPublished(t *testing.T) {
	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	a := &Article{Status: StatusDraft}

	a.MarkPublished(first)
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, StatusPublished, a.Status)
	assert.Equal(t, first, *a.PublishedAt)

	a.Status = StatusDraft
	a.MarkPublished(first.Add(time.Hour))
	assert.Equal(t, first, *a.PublishedAt, "published_at is only stamped once")
}

func TestArticleStatusValid(t *testing.T) {
	assert.True(t, StatusDraft.Valid())
	assert.True(t, StatusArchived.Valid())
	assert.False(t, ArticleStatus("deleted").Valid())
}

func TestCommentAuthorName(t *testing.T) {
	guest := &Comment{GuestName: "路人甲"}
	assert.Equal(t, "路人甲", guest.AuthorName())
	assert.True(t, guest.IsGuest())

	id := uint(7)
	member := &Comment{AuthorID: &id, Author: &User{ID: 7, Username: "alice"}, GuestName: "ignored"}
	assert.Equal(t, "alice", member.AuthorName())
	assert.True(t, member.OwnedBy(&User{ID: 7}))
	assert.False(t, member.OwnedBy(&User{ID: 8}))
	assert.False(t, member.OwnedBy(nil))
}

func TestUserPermissions(t *testing.T) {
	staff := &User{ID: 1, Role: RoleStaff}
	member := &User{ID: 2, Role: RoleUser}
	var anon *User

	assert.True(t, staff.CanModify(2))
	assert.True(t, member.CanModify(2))
	assert.False(t, member.CanModify(3))
	assert.False(t, anon.CanModify(2))
	assert.False(t, anon.IsStaff())
}
