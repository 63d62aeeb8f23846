package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/clock"
	"golang.org/x/time/rate"
)

// idleTTL is how long an untouched per-key limiter is retained.
const idleTTL = 30 * time.Minute

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket per key. It allows limit
// requests per window with a burst of limit.
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	every     rate.Limit
	burst     int
	clock     clock.Clock
	lastSweep time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, clk clock.Clock) *MemoryLimiter {
	return &MemoryLimiter{
		entries:   make(map[string]*memoryEntry),
		every:     rate.Every(window / time.Duration(limit)),
		burst:     limit,
		clock:     clk,
		lastSweep: clk.Now(),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)
	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{limiter: rate.NewLimiter(m.every, m.burst)}
		m.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}

// sweep drops idle limiters at most once per idleTTL. Caller holds mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < idleTTL {
		return
	}
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) >= idleTTL {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

func (m *MemoryLimiter) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
