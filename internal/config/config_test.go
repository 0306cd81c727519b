package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("PORT", "")
		t.Setenv("COMMENT_MODERATION", "")
		t.Setenv("JWT_TTL_HOURS", "")
		t.Setenv("SITE_URL", "")

		cfg := FromEnv()
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, ModerationNone, cfg.CommentModeration)
		assert.Equal(t, 72*time.Hour, cfg.JWTTTL)
		assert.Equal(t, "http://localhost:8080", cfg.SiteURL)
		assert.False(t, cfg.SMTP.Enabled())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("COMMENT_MODERATION", "Guests")
		t.Setenv("JWT_TTL_HOURS", "2")
		t.Setenv("SITE_URL", "https://blog.example.com/")

		cfg := FromEnv()
		assert.Equal(t, "9000", cfg.Port)
		assert.Equal(t, ModerationGuests, cfg.CommentModeration)
		assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
		assert.Equal(t, "https://blog.example.com", cfg.SiteURL)
	})

	t.Run("invalid ttl falls back", func(t *testing.T) {
		t.Setenv("JWT_TTL_HOURS", "abc")
		assert.Equal(t, 72*time.Hour, FromEnv().JWTTTL)
	})
}
