// Package cache memoizes expensive derived values keyed by their inputs.
package cache

import (
	"container/list"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Stats reports memo usage.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Memo caches the result of a computation per key. Concurrent Get calls for
// the same key share one computation. Failed computations are not stored.
// A Memo with a positive capacity evicts its least recently used entry when
// full.
type Memo[K comparable, V any] struct {
	capacity int
	group    singleflight.Group

	mu      sync.Mutex
	entries map[K]*list.Element
	order   *list.List
	stats   Stats
}

// New returns a Memo holding at most capacity entries; zero means
// unbounded.
func New[K comparable, V any](capacity int) *Memo[K, V] {
	return &Memo[K, V]{
		capacity: max(capacity, 0),
		entries:  make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get returns the stored value for key, computing and storing it on a miss.
func (m *Memo[K, V]) Get(key K, compute func() (V, error)) (V, error) {
	if v, ok := m.lookup(key); ok {
		return v, nil
	}

	res, err, _ := m.group.Do(fmt.Sprintf("%#v", key), func() (any, error) {
		if v, ok := m.peek(key); ok {
			return v, nil
		}
		m.mu.Lock()
		m.stats.Misses++
		m.mu.Unlock()

		v, err := compute()
		if err != nil {
			return v, err
		}
		m.store(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Forget drops key.
func (m *Memo[K, V]) Forget(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}
}

// Len returns the number of stored entries.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot of the usage counters.
func (m *Memo[K, V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Entries = len(m.entries)
	return s
}

func (m *Memo[K, V]) lookup(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	m.order.MoveToFront(el)
	m.stats.Hits++
	return el.Value.(*entry[K, V]).value, true
}

// peek returns the stored value for key without counting a hit or touching
// recency.
func (m *Memo[K, V]) peek(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return el.Value.(*entry[K, V]).value, true
}

func (m *Memo[K, V]) store(key K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		el.Value.(*entry[K, V]).value = v
		m.order.MoveToFront(el)
		return
	}
	m.entries[key] = m.order.PushFront(&entry[K, V]{key: key, value: v})
	if m.capacity > 0 && m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*entry[K, V]).key)
		m.stats.Evictions++
	}
}
