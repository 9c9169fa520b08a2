package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	c := New(time.Minute)
	c.Put("1.2.3.4:8080", true)
	c.Put("5.6.7.8:3128", false)

	e, ok := c.Get("1.2.3.4:8080")
	require.True(t, ok)
	assert.True(t, e.Valid)
	assert.True(t, e.Fresh(time.Minute, time.Now()))

	e, ok = c.Get("5.6.7.8:3128")
	require.True(t, ok)
	assert.False(t, e.Valid)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestEntryFreshness(t *testing.T) {
	now := time.Now()
	e := Entry{Valid: true, TestedAt: now.Add(-2 * time.Minute)}

	assert.True(t, e.Fresh(5*time.Minute, now))
	// An entry past its TTL must not be honored even while still present.
	assert.False(t, e.Fresh(time.Minute, now))
}

func TestFreshValidSkipsStaleAndInvalid(t *testing.T) {
	c := New(50 * time.Millisecond)
	c.Put("stale:1", true)
	time.Sleep(60 * time.Millisecond)
	c.Put("valid:1", true)
	c.Put("invalid:1", false)

	keys := c.FreshValid(0)
	assert.Equal(t, []string{"valid:1"}, keys)
}

func TestFreshValidHonorsLimit(t *testing.T) {
	c := New(time.Minute)
	c.Put("a:1", true)
	c.Put("b:2", true)
	c.Put("c:3", true)

	assert.Len(t, c.FreshValid(2), 2)
	assert.Len(t, c.FreshValid(0), 3)
}

func TestSweepExpired(t *testing.T) {
	c := New(50 * time.Millisecond)
	c.Put("old:1", true)
	c.Put("old:2", false)
	time.Sleep(60 * time.Millisecond)
	c.Put("new:1", true)

	removed := c.SweepExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	// Idempotent: a second sweep has nothing left to do.
	assert.Equal(t, 0, c.SweepExpired())
}
