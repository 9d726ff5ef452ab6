package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestTTLCacheExpiry(t *testing.T) {
	clock := &fakeNow{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[string, int](clock.Now)

	c.Set("short", 1, time.Minute)
	c.Set("forever", 2, 0)

	v, ok := c.Get("short")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get("short")
	assert.False(t, ok)

	v, ok = c.Get("forever")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLCacheDeleteAndPurge(t *testing.T) {
	clock := &fakeNow{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[int, string](clock.Now)

	c.Set(1, "a", time.Second)
	c.Set(2, "b", time.Hour)
	c.Set(3, "c", time.Hour)
	c.Delete(3)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, c.Purge())

	_, ok := c.Get(3)
	assert.False(t, ok)
}

func TestNilTTLCache(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("k", 1, time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Purge())
}
