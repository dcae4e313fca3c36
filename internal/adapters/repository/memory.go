package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/okian/kata/internal/domain/model"
)

const defaultMaxEntries = 10000

type entry struct {
	result  *model.SyncResult
	failure *Failure
	touched time.Time
}

// MemoryStore implements Store with a map guarded by a RWMutex.
// Usernames are matched case-insensitively.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	now        func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*entry),
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *MemoryStore) Save(_ context.Context, res model.SyncResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(key(res.Username))
	r := res
	e.result = &r
	e.failure = nil
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, f Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.At.IsZero() {
		f.At = s.now()
	}
	e := s.entry(key(f.Username))
	e.failure = &f
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, username string) (model.SyncResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key(username)]
	if !ok || e.result == nil {
		return model.SyncResult{}, ErrNotFound
	}
	return *e.result, nil
}

func (s *MemoryStore) LastFailure(_ context.Context, username string) (Failure, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key(username)]
	if !ok || e.failure == nil {
		return Failure{}, false
	}
	return *e.failure, true
}

func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if e.result != nil {
			n++
		}
	}
	return n
}

// entry returns the slot for k, evicting the stalest one when full.
// Must be called with s.mu held.
func (s *MemoryStore) entry(k string) *entry {
	e, ok := s.entries[k]
	if !ok {
		if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
			s.evictOldest()
		}
		e = &entry{}
		s.entries[k] = e
	}
	e.touched = s.now()
	return e
}

func (s *MemoryStore) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range s.entries {
		if !found || e.touched.Before(oldest) {
			oldestKey, oldest, found = k, e.touched, true
		}
	}
	if found {
		delete(s.entries, oldestKey)
	}
}
