package sessioncache

import (
	"context"
	"testing"
	"time"

	"github.com/voltzug/cinder/internal/domain"
)

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

func newSession(id domain.SessionID, now time.Time, ttl time.Duration) domain.Session {
	return domain.Session{
		ID:        id,
		Mode:      domain.ModeDownload,
		CreatedAt: domain.NewTimestamp(now),
		ExpiresAt: domain.NewTimestamp(now.Add(ttl)),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	now := time.Now()
	c := New(fixedClock{now: now})
	sess := newSession(domain.NewSessionID(), now, time.Hour)
	if err := c.Save(context.Background(), sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := c.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != sess.ID {
		t.Fatalf("expected id %v, got %v", sess.ID, got.ID)
	}
}

func TestSaveRejectsAlreadyExpired(t *testing.T) {
	now := time.Now()
	c := New(fixedClock{now: now})
	sess := newSession(domain.NewSessionID(), now.Add(-time.Hour), time.Minute)
	if err := c.Save(context.Background(), sess); err != domain.ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestGetMissingReturnsInvalidSession(t *testing.T) {
	c := New(fixedClock{now: time.Now()})
	if _, err := c.Get(context.Background(), domain.NewSessionID()); err != domain.ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestGetExpiredDeletesAndReturnsInvalidSession(t *testing.T) {
	now := time.Now()
	clock := &fixedClock{now: now}
	c := New(clock)
	sess := newSession(domain.NewSessionID(), now, time.Minute)
	if err := c.Save(context.Background(), sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	clock.now = now.Add(2 * time.Minute)
	if _, err := c.Get(context.Background(), sess.ID); err != domain.ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired session to be evicted, Len=%d", c.Len())
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := New(fixedClock{now: time.Now()})
	id := domain.NewSessionID()
	if err := c.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete on missing id: %v", err)
	}
	sess := newSession(id, time.Now(), time.Hour)
	if err := c.Save(context.Background(), sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, Len=%d", c.Len())
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	now := time.Now()
	clock := &fixedClock{now: now}
	c := New(clock)
	live := newSession(domain.NewSessionID(), now, time.Hour)
	dead := newSession(domain.NewSessionID(), now, time.Minute)
	if err := c.Save(context.Background(), live); err != nil {
		t.Fatalf("save live: %v", err)
	}
	if err := c.Save(context.Background(), dead); err != nil {
		t.Fatalf("save dead: %v", err)
	}
	clock.now = now.Add(2 * time.Minute)
	removed := c.Sweep()
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", c.Len())
	}
	if _, err := c.Get(context.Background(), live.ID); err != nil {
		t.Fatalf("expected live session to survive sweep: %v", err)
	}
}
