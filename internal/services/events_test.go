package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	_, client := newMiniRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, DefaultEventChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "")
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Publish(ctx, Event{Type: EventCommentCreated, ArticleID: 7, CommentID: 42, At: at}))

	select {
	case msg := <-sub.Channel():
		var evt Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &evt))
		assert.Equal(t, EventCommentCreated, evt.Type)
		assert.EqualValues(t, 7, evt.ArticleID)
		assert.EqualValues(t, 42, evt.CommentID)
		assert.Zero(t, evt.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Type: EventCommentDeleted}))
}
