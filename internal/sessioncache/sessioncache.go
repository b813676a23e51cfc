// Package sessioncache implements the app.SessionCache port (C6): an
// in-memory, mutex-protected map of in-flight download/upload handshake
// sessions with lazy TTL expiry on read. It deliberately does not reach for
// an external cache library: nothing in the retrieved reference corpus
// imports one directly (the one candidate, patrickmn/go-cache, only ever
// appears as an indirect transitive dependency nobody's own code calls), so
// the sync.Mutex-guarded map idiom the corpus does use for small in-process
// state (see internal/janitor's cycleMetrics) is followed here instead.
package sessioncache

import (
	"context"
	"sync"

	"github.com/voltzug/cinder/internal/app"
	"github.com/voltzug/cinder/internal/domain"
)

// Cache is a concurrency-safe, in-memory Session store. Zero-value is not
// valid; construct via New.
type Cache struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]domain.Session
	clock    app.Clock
}

// New returns an empty Cache using clock to evaluate expiry.
func New(clock app.Clock) *Cache {
	return &Cache{sessions: make(map[domain.SessionID]domain.Session), clock: clock}
}

func (c *Cache) now() domain.Timestamp { return domain.NewTimestamp(c.clock.Now()) }

// Save implements app.SessionCache.Save. An already-expired session is
// rejected rather than silently admitted.
func (c *Cache) Save(ctx context.Context, s domain.Session) error {
	if s.IsExpired(c.now()) {
		return domain.ErrInvalidSession
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = s
	return nil
}

// Get implements app.SessionCache.Get: present-and-unexpired returns the
// session; present-but-expired deletes it and returns ErrInvalidSession;
// absent also returns ErrInvalidSession.
func (c *Cache) Get(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrInvalidSession
	}
	if s.IsExpired(c.now()) {
		delete(c.sessions, id)
		return domain.Session{}, domain.ErrInvalidSession
	}
	return s, nil
}

// Delete implements app.SessionCache.Delete. Idempotent.
func (c *Cache) Delete(ctx context.Context, id domain.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
	return nil
}

// Sweep removes every expired session and reports how many were removed. It
// gives the janitor an O(1)-port hook for session cleanup alongside file
// expiry, without requiring the janitor to import this package's internals.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, s := range c.sessions {
		if s.IsExpired(now) {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the current number of tracked sessions, live or expired.
// Intended for tests and metrics, not for control flow.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
