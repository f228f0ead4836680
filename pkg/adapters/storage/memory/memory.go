package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arbiterhq/arbiter/internal/domain"
)

// Archive is the in-memory session archive used when no Redis address is
// configured. Snapshots are deep-copied on save and load so callers never
// share artifact slices with the archive.
type Archive struct {
	mu    sync.RWMutex
	snaps map[string]*domain.SessionSnapshot
}

// NewArchive creates an in-memory session archive.
func NewArchive() *Archive {
	return &Archive{snaps: make(map[string]*domain.SessionSnapshot)}
}

// Save stores a copy of the snapshot, replacing any previous one.
func (a *Archive) Save(_ context.Context, snap *domain.SessionSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snaps[snap.Session.ID] = copySnapshot(snap)
	return nil
}

// Load returns a copy of the stored snapshot.
func (a *Archive) Load(_ context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap, ok := a.snaps[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySnapshot(snap), nil
}

// List returns the IDs of all archived sessions.
func (a *Archive) List(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.snaps))
	for id := range a.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}

func copySnapshot(snap *domain.SessionSnapshot) *domain.SessionSnapshot {
	out := &domain.SessionSnapshot{
		Session:   snap.Session,
		Artifacts: make([]domain.Artifact, len(snap.Artifacts)),
	}
	copy(out.Artifacts, snap.Artifacts)
	return out
}

// Cache is the in-memory tool cache. Entries expire lazily on read.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value   string
	expires time.Time
}

// NewCache creates an in-memory cache. A non-positive ttl disables
// expiry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

// Get returns the cached value for key, reporting a miss for absent or
// expired entries.
func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Put stores value under key.
func (c *Cache) Put(_ context.Context, key, value string) error {
	var expires time.Time
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expires: expires}
	c.mu.Unlock()
	return nil
}
