package cache

import (
	"context"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"sync"
	"time"
)

// DefaultMemorySize bounds each TTL class of a Memory store.
const DefaultMemorySize = 10000

// Memory is an in-process Store, used when no Redis address is configured.
// Entries are kept in one expiring LRU per TTL, so expired keys are swept in
// the background and each class holds at most size keys.
type Memory struct {
	mu    sync.Mutex
	size  int
	byTTL map[time.Duration]*expirable.LRU[string, string]
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{size: size, byTTL: make(map[time.Duration]*expirable.LRU[string, string])}
}

// class must be called with m.mu held. A ttl of zero never expires.
func (m *Memory) class(ttl time.Duration) *expirable.LRU[string, string] {
	if ttl < 0 {
		ttl = 0
	}
	l, ok := m.byTTL[ttl]
	if !ok {
		l = expirable.NewLRU[string, string](m.size, nil, ttl)
		m.byTTL[ttl] = l
	}
	return l
}

func (m *Memory) lookup(key string) (string, bool) {
	for _, l := range m.byTTL {
		if v, ok := l.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

func (m *Memory) put(key, value string, ttl time.Duration) {
	target := m.class(ttl)
	for _, l := range m.byTTL {
		if l != target {
			l.Remove(key)
		}
	}
	target.Add(key, value)
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.lookup(key)
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value, ttl)
	return nil
}

func (m *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		for _, l := range m.byTTL {
			l.Remove(k)
		}
	}
	return nil
}

// Len counts stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.byTTL {
		n += l.Len()
	}
	return n
}
