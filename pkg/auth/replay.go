package auth

import (
	"context"
	"sync"
	"time"
)

// ReplayGuard tracks consumed linking credential ids for their validity
// window so a credential cannot attach or create accounts more than once.
type ReplayGuard interface {
	// Consume atomically records the token id. Returns ErrCredentialUsed when
	// the id was already consumed within the ttl window. Must be atomic to
	// prevent races between concurrent decision requests.
	Consume(ctx context.Context, tokenID string, ttl time.Duration) error
}

// MemoryReplayGuard is an in-process ReplayGuard suitable for single-instance
// deployments and tests. Multi-instance deployments should use the
// Redis-backed guard instead.
type MemoryReplayGuard struct {
	mu       sync.Mutex
	consumed map[string]time.Time
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		consumed: make(map[string]time.Time),
	}
}

func (g *MemoryReplayGuard) Consume(_ context.Context, tokenID string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()

	// Opportunistic cleanup keeps the map bounded without a background task.
	for id, expiresAt := range g.consumed {
		if now.After(expiresAt) {
			delete(g.consumed, id)
		}
	}

	if expiresAt, ok := g.consumed[tokenID]; ok && now.Before(expiresAt) {
		return ErrCredentialUsed
	}

	g.consumed[tokenID] = now.Add(ttl)
	return nil
}

// Compile-time interface assertion
var _ ReplayGuard = (*MemoryReplayGuard)(nil)
