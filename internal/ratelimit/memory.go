package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memoryEntry is the counter for one key in the current window
type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps one fixed window counter per key in process memory.
// It follows the same rules as the redis script: the window starts with the first request
// from a key and the counter is dropped when the window ends.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	max     int
	window  time.Duration
	now     func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the time source (used in tests)
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates a store allowing max requests per window per key.
func NewMemoryStore(max int, window time.Duration, opts ...MemoryOption) (*MemoryStore, error) {
	if max <= 0 {
		return nil, fmt.Errorf("memory rate limit max must be greater than 0, got %d", max)
	}
	if window <= 0 {
		return nil, fmt.Errorf("memory rate limit window must be greater than 0")
	}

	m := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		max:     max,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MemoryStoreFactory adapts NewMemoryStore for use with New
func MemoryStoreFactory(opts ...MemoryOption) func(int, time.Duration) (Store, error) {
	return func(max int, window time.Duration) (Store, error) {
		store, err := NewMemoryStore(max, window, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func (m *MemoryStore) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &memoryEntry{resetAt: now.Add(m.window)}
		m.entries[key] = entry
	}
	entry.count++

	return Decision{
		Allowed:    entry.count <= m.max,
		Limit:      m.max,
		Remaining:  max(0, m.max-entry.count),
		ResetAfter: entry.resetAt.Sub(now),
	}, nil
}

// Sweep drops counters whose window has ended.
func (m *MemoryStore) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.resetAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RunSweep calls Sweep every interval until ctx is cancelled.
func (m *MemoryStore) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
