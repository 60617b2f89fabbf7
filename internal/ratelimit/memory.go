package ratelimit

import (
	"context"
	"sync"
	"time"
)

// entry tracks the token state for one key.
type entry struct {
	avail float64
	seen  time.Time
}

// MemoryLimiter is an in-process token bucket keyed by caller. It guards
// the session-start and transcript endpoints of a single instance;
// multi-instance deployments need a shared Limiter instead.
type MemoryLimiter struct {
	perSecond float64
	capacity  float64

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	done     chan struct{}
}

// idleTTL is how long an untouched key keeps its bucket before the
// janitor drops it.
const idleTTL = 10 * time.Minute

// NewMemoryLimiter creates a limiter allowing rate requests per second
// per key with the given burst capacity. A janitor goroutine drops idle
// keys; call Close to stop it.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		perSecond: rate,
		capacity:  float64(burst),
		entries:   make(map[string]*entry),
		done:      make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Allow takes one token for key, reporting whether the request may
// proceed.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{avail: m.capacity, seen: now}
		m.entries[key] = e
	} else {
		e.avail += now.Sub(e.seen).Seconds() * m.perSecond
		if e.avail > m.capacity {
			e.avail = m.capacity
		}
		e.seen = now
	}

	if e.avail < 1 {
		return false, nil
	}
	e.avail--
	return true, nil
}

// Close stops the janitor. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) janitor() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			m.dropIdle(time.Now().Add(-idleTTL))
		}
	}
}

// dropIdle removes every key not seen since cutoff.
func (m *MemoryLimiter) dropIdle(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.seen.Before(cutoff) {
			delete(m.entries, key)
		}
	}
}
