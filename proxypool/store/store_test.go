package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypool_nexus/proxypool/model"
)

func mustProxy(t *testing.T, host string, port int) *model.ValidatedProxy {
	t.Helper()
	c, ok := model.NewCandidate(host, port, "", "")
	require.True(t, ok)
	return model.NewValidatedProxy(c, "http")
}

func filledStore(t *testing.T, n int) *Store {
	t.Helper()
	s := New()
	for i := 1; i <= n; i++ {
		require.True(t, s.InsertIfAbsent(mustProxy(t, fmt.Sprintf("%d.%d.%d.%d", i, i, i, i), 8080)))
	}
	return s
}

func TestInsertIfAbsentRejectsDuplicateIdentity(t *testing.T) {
	s := New()
	assert.True(t, s.InsertIfAbsent(mustProxy(t, "1.1.1.1", 8080)))
	assert.False(t, s.InsertIfAbsent(mustProxy(t, "1.1.1.1", 8080)))
	assert.Equal(t, 1, s.Size())

	// Credentials are part of insertion identity, so the same address with
	// different credentials is a distinct entry.
	c, ok := model.NewCandidate("1.1.1.1", 8080, "alice", "x")
	require.True(t, ok)
	assert.True(t, s.InsertIfAbsent(model.NewValidatedProxy(c, "http")))
	assert.Equal(t, 2, s.Size())
}

func TestAcquireRoundRobin(t *testing.T) {
	s := filledStore(t, 3)

	seen := make(map[string]int)
	var order []string
	for i := 0; i < 3; i++ {
		p, ok := s.Acquire()
		require.True(t, ok)
		seen[p.Host]++
		order = append(order, p.Host)
	}
	// Each entry exactly once over one full rotation.
	for host, n := range seen {
		assert.Equal(t, 1, n, "host %s acquired %d times", host, n)
	}

	// The fourth acquisition wraps back to the start of the cycle.
	p, ok := s.Acquire()
	require.True(t, ok)
	assert.Equal(t, order[0], p.Host)
}

func TestAcquireEmptyPool(t *testing.T) {
	s := New()
	p, ok := s.Acquire()
	assert.Nil(t, p)
	assert.False(t, ok)
}

func TestRemoveIgnoresCredentials(t *testing.T) {
	s := New()
	c, ok := model.NewCandidate("1.1.1.1", 8080, "alice", "x")
	require.True(t, ok)
	require.True(t, s.InsertIfAbsent(model.NewValidatedProxy(c, "http")))

	// Public removal matches on host+port only.
	assert.True(t, s.Remove("1.1.1.1", 8080))
	assert.Equal(t, 0, s.Size())
}

func TestRemoveNonexistent(t *testing.T) {
	s := filledStore(t, 2)

	first, ok := s.Acquire()
	require.True(t, ok)

	assert.False(t, s.Remove("9.9.9.9", 1234))
	assert.Equal(t, 2, s.Size())

	// Cursor is untouched: rotation continues where it left off.
	second, ok := s.Acquire()
	require.True(t, ok)
	assert.NotEqual(t, first.Host, second.Host)
}

func TestRemoveAtCursorKeepsAcquireInRange(t *testing.T) {
	s := filledStore(t, 3)

	// Advance the cursor to the last entry, then remove entries so the
	// pool shrinks below the cursor's index.
	_, _ = s.Acquire()
	_, _ = s.Acquire()
	require.True(t, s.Remove("3.3.3.3", 8080))
	require.True(t, s.Remove("2.2.2.2", 8080))

	p, ok := s.Acquire()
	require.True(t, ok)
	assert.Equal(t, "1.1.1.1", p.Host)
}

func TestRemoveEverything(t *testing.T) {
	s := filledStore(t, 2)
	require.True(t, s.Remove("1.1.1.1", 8080))
	require.True(t, s.Remove("2.2.2.2", 8080))

	p, ok := s.Acquire()
	assert.Nil(t, p)
	assert.False(t, ok)
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	s := filledStore(t, 2)
	snap := s.Snapshot()
	require.Len(t, snap, 2)

	snap[0] = nil
	fresh := s.Snapshot()
	assert.NotNil(t, fresh[0])
}

func TestContainsIdentity(t *testing.T) {
	s := filledStore(t, 1)
	c, ok := model.NewCandidate("1.1.1.1", 8080, "", "")
	require.True(t, ok)
	assert.True(t, s.ContainsIdentity(c.Identity()))

	other, ok := model.NewCandidate("1.1.1.1", 9090, "", "")
	require.True(t, ok)
	assert.False(t, s.ContainsIdentity(other.Identity()))
}
