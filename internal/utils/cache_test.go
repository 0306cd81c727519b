package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheTTL(t *testing.T) {
	c := NewCache(10)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 42, time.Minute)
	assert.Equal(t, 42, c.Get("k"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Get("k"), "expired entries are dropped")
}

func TestCacheDeletePrefix(t *testing.T) {
	c := NewCache(10)
	c.Set("article:list:1", "a", time.Minute)
	c.Set("article:list:2", "b", time.Minute)
	c.Set("sidebar", "c", time.Minute)

	c.DeletePrefix("article:list:")
	assert.Nil(t, c.Get("article:list:1"))
	assert.Nil(t, c.Get("article:list:2"))
	assert.Equal(t, "c", c.Get("sidebar"))
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)
	assert.Nil(t, c.Get("a"))
	assert.Equal(t, 3, c.Get("c"))
}
