// Package store provides the in-memory, short-lived cache of fetched Jira issues.
// It holds the last fetch result with its timestamp and groups issues into
// stage columns for the board view.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/h0rv/jobtrack/internal/domain"
)

// DefaultTTL is how long a fetch result is reused before refetching.
const DefaultTTL = 3 * time.Minute

// ErrEmpty indicates nothing has been fetched yet.
var ErrEmpty = errors.New("store is empty")

// Entry is one cached fetch result.
type Entry struct {
	Issues      []domain.Issue
	Diagnostics []domain.Diagnostic
	FetchedAt   time.Time
}

// FetchFunc produces a fresh fetch result.
type FetchFunc func(ctx context.Context) ([]domain.Issue, []domain.Diagnostic, error)

// Store caches the most recent issue fetch for a TTL.
// The cache is process-wide: it is not keyed by query, so a different
// query within the TTL is answered from the previous fetch.
type Store struct {
	mu    sync.Mutex
	entry *Entry
	ttl   time.Duration
	now   func() time.Time
}

// New creates a new empty Store. A non-positive ttl selects DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, now: time.Now}
}

// SetClock replaces time.Now, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load returns the cached entry, calling fetch first when the cache is empty,
// older than the TTL, or force is set. The second return value reports
// whether the entry came from the cache. A failed fetch keeps the previous entry.
func (s *Store) Load(ctx context.Context, force bool, fetch FetchFunc) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && s.freshLocked() {
		return *s.entry, true, nil
	}

	issues, diags, err := fetch(ctx)
	if err != nil {
		return Entry{}, false, err
	}

	s.entry = &Entry{
		Issues:      issues,
		Diagnostics: diags,
		FetchedAt:   s.now(),
	}
	return *s.entry, false, nil
}

// Fresh reports whether a cached entry exists and is within the TTL.
func (s *Store) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freshLocked()
}

// Get returns the cached entry regardless of age, or ErrEmpty.
func (s *Store) Get() (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return Entry{}, ErrEmpty
	}
	return *s.entry, nil
}

// Columns groups cached issue keys by the stage of their current status.
// Keys within a column are sorted. Returns ErrEmpty if nothing is cached.
func (s *Store) Columns(classify func(status string) domain.Stage) (map[domain.Stage][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry == nil {
		return nil, ErrEmpty
	}

	columns := make(map[domain.Stage][]string)
	for _, issue := range s.entry.Issues {
		st := classify(issue.Status)
		columns[st] = append(columns[st], issue.Key)
	}
	for _, keys := range columns {
		sort.Strings(keys)
	}
	return columns, nil
}

// Clear drops the cached entry so the next Load fetches.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = nil
}

// freshLocked must be called with mu held.
func (s *Store) freshLocked() bool {
	return s.entry != nil && s.now().Sub(s.entry.FetchedAt) <= s.ttl
}
