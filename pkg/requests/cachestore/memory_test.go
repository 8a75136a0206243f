package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetPut(t *testing.T) {
	m, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "a", "1", time.Minute))
	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	// Least recently used entry is evicted once full
	require.NoError(t, m.Put(ctx, "b", "2", time.Minute))
	require.NoError(t, m.Put(ctx, "c", "3", time.Minute))
	assert.Equal(t, 2, m.Len())
	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	m, err := NewMemory(0)
	require.NoError(t, err)
	ctx := context.Background()

	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	require.NoError(t, m.Put(ctx, "short", "v", time.Minute))
	require.NoError(t, m.Put(ctx, "capped", "v", 48*time.Hour))

	current = current.Add(2 * time.Minute)
	_, ok, _ := m.Get(ctx, "short")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "capped")
	assert.True(t, ok)

	current = current.Add(MaxTTL)
	_, ok, _ = m.Get(ctx, "capped")
	assert.False(t, ok)
}

func TestCapTTL(t *testing.T) {
	assert.Equal(t, MaxTTL, capTTL(0))
	assert.Equal(t, MaxTTL, capTTL(-time.Second))
	assert.Equal(t, MaxTTL, capTTL(7*time.Hour))
	assert.Equal(t, time.Hour, capTTL(time.Hour))
}
