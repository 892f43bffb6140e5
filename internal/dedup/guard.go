// Package dedup suppresses repeat trades for the same pool.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a claimed key blocks repeats.
const DefaultTTL = 24 * time.Hour

// Guard claims keys. Claim returns true exactly once per key within the TTL.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]time.Time // key -> expiry
	now    func() time.Time
}

// NewMemoryGuard creates a guard. ttl <= 0 uses DefaultTTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		ttl:    ttl,
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

var _ Guard = (*MemoryGuard)(nil)

// Claim implements Guard.
func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiry, ok := g.claims[key]; ok && now.Before(expiry) {
		return false, nil
	}
	g.claims[key] = now.Add(g.ttl)

	// Sweep expired keys occasionally to bound memory.
	if len(g.claims)%256 == 0 {
		for k, exp := range g.claims {
			if !now.Before(exp) {
				delete(g.claims, k)
			}
		}
	}
	return true, nil
}
