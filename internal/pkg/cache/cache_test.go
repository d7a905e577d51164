package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New(time.Minute, 0)

	c.Set("isbn:9788937460777", "value")

	got, ok := c.Get("isbn:9788937460777")
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestCache_NilValueIsAHit(t *testing.T) {
	c := New(time.Minute, 0)

	// Negative result: the key exists, the value is nil
	c.Set("isbn:0000000000", nil)

	got, ok := c.Get("isbn:0000000000")
	assert.True(t, ok, "a cached nil must count as a hit")
	assert.Nil(t, got)
}

func TestCache_ExpiredEntryIsAMiss(t *testing.T) {
	c := New(time.Minute, 0)

	c.SetWithTTL("key", "value", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("key")
	assert.False(t, ok)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0, stats.Keys, "expired entry should be removed on read")
}

func TestCache_Delete(t *testing.T) {
	c := New(time.Minute, 0)

	c.Set("key", "value")
	c.Delete("key")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c := New(time.Minute, 0)

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Keys)
}
