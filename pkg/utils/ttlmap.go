package utils

import (
	"sync"
	"time"
)

// TTLMap provides a thread-safe map with expiring entries.
type TTLMap[K comparable, V any] struct {
	mu      sync.RWMutex
	data    map[K]V
	expires map[K]time.Time
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewTTLMap creates a new TTLMap with the specified TTL duration.
// Call Close to stop the background cleanup.
func NewTTLMap[K comparable, V any](ttl time.Duration) *TTLMap[K, V] {
	m := &TTLMap[K, V]{
		data:    make(map[K]V),
		expires: make(map[K]time.Time),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}

	go m.cleanup()

	return m
}

// Get retrieves a value and whether it is present and unexpired.
func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists || time.Now().After(m.expires[key]) {
		var zero V
		return zero, false
	}

	return value, true
}

// GetOrCreate returns the live value for key, creating it with create when absent.
// The entry's expiry is refreshed in both cases.
func (m *TTLMap[K, V]) GetOrCreate(key K, create func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	value, exists := m.data[key]
	if !exists || now.After(m.expires[key]) {
		value = create()
		m.data[key] = value
	}

	m.expires[key] = now.Add(m.ttl)

	return value
}

// Set adds or updates a value.
func (m *TTLMap[K, V]) Set(key K, value V) {
	m.SetWithTTL(key, value, m.ttl)
}

// SetWithTTL adds or updates a value with a custom lifetime.
func (m *TTLMap[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	m.expires[key] = time.Now().Add(ttl)
}

// Delete removes a key.
func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.expires, key)
}

// Len returns the number of stored entries, including ones not yet swept.
func (m *TTLMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// Close stops the cleanup goroutine.
func (m *TTLMap[K, V]) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *TTLMap[K, V]) cleanup() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()

			now := time.Now()
			for key, expires := range m.expires {
				if now.After(expires) {
					delete(m.data, key)
					delete(m.expires, key)
				}
			}

			m.mu.Unlock()
		}
	}
}
