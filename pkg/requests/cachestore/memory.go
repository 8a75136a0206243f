package cachestore

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the default number of entries kept by Memory.
const DefaultMemorySize = 1024

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is a process-local Store. Expired entries are dropped lazily on read
// and the least recently used entry is evicted once the store is full.
type Memory struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates a memory store holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: entries, now: time.Now}, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.entries.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.entries.Add(key, memoryEntry{
		value:     value,
		expiresAt: m.now().Add(capTTL(ttl)),
	})
	return nil
}

// Len returns the number of entries, including expired ones not yet dropped.
func (m *Memory) Len() int {
	return m.entries.Len()
}
