package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EventCommentCreated   = "comment.created"
	EventCommentDeleted   = "comment.deleted"
	EventCommentLiked     = "comment.liked"
	EventCommentUnliked   = "comment.unliked"
	EventCommentPinned    = "comment.pinned"
	EventCommentModerated = "comment.moderated"
)

// DefaultEventChannel is the Redis channel comment events are published on.
const DefaultEventChannel = "inkwell:comments"

type Event struct {
	Type      string    `json:"type"`
	ArticleID uint      `json:"article_id"`
	CommentID uint      `json:"comment_id,omitempty"`
	UserID    uint      `json:"user_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher fans out comment events to live listeners.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
