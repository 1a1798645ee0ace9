package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cardduel/server/game/engine"
)

// Loader reads a committed record from durable storage.
type Loader interface {
	FindByID(ctx context.Context, id string) (*engine.GameRecord, error)
}

type entry struct {
	record     *engine.GameRecord
	lastAccess time.Time
}

// Store caches the committed record of each active session
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	removed map[string]time.Time
	loader  Loader
	group   singleflight.Group
	now     func() time.Time
}

// NewStore creates a store that loads misses through loader
func NewStore(loader Loader) *Store {
	return &Store{
		entries: make(map[string]*entry),
		removed: make(map[string]time.Time),
		loader:  loader,
		now:     time.Now,
	}
}

// Get returns the committed record for id. On a miss the record is loaded
// once, however many callers are waiting on it. Finished records are
// returned but not cached.
func (s *Store) Get(ctx context.Context, id string) (*engine.GameRecord, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		s.touch(id)
		return e.record, nil
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		rec, err := s.loader.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.fill(rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*engine.GameRecord), nil
}

// fill caches a loaded record unless a writer got there first or the
// session was retired while it was loading.
func (s *Store) fill(rec *engine.GameRecord) {
	if rec.Status == engine.StatusFinished {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[rec.ID]; ok {
		return
	}
	if _, ok := s.removed[rec.ID]; ok {
		return
	}
	s.entries[rec.ID] = &entry{record: rec, lastAccess: s.now()}
}

func (s *Store) touch(id string) {
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.lastAccess = s.now()
	}
	s.mu.Unlock()
}

// Put publishes a committed record
func (s *Store) Put(rec *engine.GameRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.removed, rec.ID)
	s.entries[rec.ID] = &entry{record: rec, lastAccess: s.now()}
}

// Remove retires a session from the cache
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	s.removed[id] = s.now()
}

// Count returns the number of cached sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IDs returns the ids of all cached sessions
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// CleanupIdle drops sessions not accessed within maxAge and forgets
// tombstones older than maxAge. Dropped sessions reload from storage on
// their next access.
func (s *Store) CleanupIdle(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	for id, at := range s.removed {
		if at.Before(cutoff) {
			delete(s.removed, id)
		}
	}
	return removed
}
