package cache

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo caches one value per key for the life of the process. Entries never
// expire; Invalidate is the only way to drop one. Concurrent first loads of
// the same key share a single call to the loader. Failed loads are not
// cached.
type Memo[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	group   singleflight.Group
}

// NewMemo creates an empty memo.
func NewMemo[T any]() *Memo[T] {
	return &Memo[T]{entries: make(map[string]T)}
}

// Get returns the cached value for key, calling load on a miss.
func (m *Memo[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := m.Peek(key); ok {
		return v, nil
	}

	res, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.Peek(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[key] = v
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Peek returns the cached value without loading.
func (m *Memo[T]) Peek(key string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Invalidate drops key so the next Get reloads it.
func (m *Memo[T]) Invalidate(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Keys returns the cached keys in sorted order.
func (m *Memo[T]) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of cached keys.
func (m *Memo[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
