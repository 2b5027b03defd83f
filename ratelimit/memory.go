// Package ratelimit provides a named-bucket request limiter for the HTTP
// adapter. Limits are fixed windows anchored at the first request for a key.
package ratelimit

import (
	"sync"
	"time"
)

// Limit configures one named bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

type entry struct {
	windowStart time.Time
	count       int
}

// Memory is an in-process limiter. Keys in unknown buckets fall back to the
// "default" bucket; with no default configured the limiter allows everything.
type Memory struct {
	mu      sync.Mutex
	limits  map[string]Limit
	entries map[string]*entry
	now     func() time.Time
}

func NewMemory(limits map[string]Limit) *Memory {
	return &Memory{
		limits:  limits,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (m *Memory) AllowNamed(bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lim, ok := m.limits[bucket]
	if !ok {
		lim, ok = m.limits["default"]
		if !ok {
			return true, nil
		}
	}
	now := m.now()
	e, ok := m.entries[key]
	if !ok || now.Sub(e.windowStart) >= lim.Window {
		m.entries[key] = &entry{windowStart: now, count: 1}
		return true, nil
	}
	if e.count >= lim.Limit {
		return false, nil
	}
	e.count++
	return true, nil
}
