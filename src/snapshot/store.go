package snapshot

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/stake-plus/deepresearch/src/evidence"
)

// ErrNotLocked is returned by Put when the caller does not hold the fetch
// lock for the URL. Writers must win AcquireFetchLock first.
var ErrNotLocked = errors.New("snapshot: put without fetch lock")

// Entry is the current snapshot for one URL plus its staleness bookkeeping.
type Entry struct {
	Evidence        evidence.Evidence
	TTLClass        string
	ExpiresAt       time.Time
	FetchInProgress bool
}

// Persister receives every accepted Put so revisions can be recorded
// outside the process. Persist failures are logged, never fatal; the
// in-memory store stays authoritative for the run.
type Persister interface {
	SaveSnapshot(e Entry) error
}

type record struct {
	entry    *Entry
	ttlClass string
	inFlight bool
	done     chan struct{}
	history  []evidence.Evidence
}

// Store holds snapshots keyed by normalized URL. Callers normalize with
// evidence.NormalizeURL before touching the store; keys are opaque here.
type Store struct {
	mu        sync.Mutex
	records   map[string]*record
	policy    *Policy
	persister Persister
	now       func() time.Time
}

// NewStore builds an empty store governed by the given TTL policy.
func NewStore(policy *Policy) *Store {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Store{
		records: make(map[string]*record),
		policy:  policy,
		now:     time.Now,
	}
}

// SetPersister attaches a revision sink. Pass nil to detach.
func (s *Store) SetPersister(p Persister) {
	s.mu.Lock()
	s.persister = p
	s.mu.Unlock()
}

// Get returns the current entry for a URL. The second return is false when
// the URL has never been stored.
func (s *Store) Get(url string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	if !ok || rec.entry == nil {
		return Entry{}, false
	}
	out := *rec.entry
	out.FetchInProgress = rec.inFlight
	return out, true
}

// Put stores a new revision for the URL. The caller must hold the fetch
// lock; writes without it are rejected with ErrNotLocked. The TTL class is
// resolved from the URL domain on the first Put and pinned for the lifetime
// of the entry, so later policy edits do not reshuffle existing snapshots.
func (s *Store) Put(url string, ev evidence.Evidence) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[url]
	if !ok || !rec.inFlight {
		return Entry{}, ErrNotLocked
	}

	if rec.ttlClass == "" {
		rec.ttlClass = s.policy.ResolveClass(evidence.Domain(url))
	}
	if rec.entry != nil {
		rec.history = append(rec.history, rec.entry.Evidence)
		ev.Revision = rec.entry.Evidence.Revision + 1
	} else if ev.Revision == 0 {
		ev.Revision = 1
	}
	accessed := ev.AccessedAt
	if accessed.IsZero() {
		accessed = s.now()
		ev.AccessedAt = accessed
	}
	entry := Entry{
		Evidence:  ev,
		TTLClass:  rec.ttlClass,
		ExpiresAt: accessed.Add(s.policy.TTL(rec.ttlClass)),
	}
	rec.entry = &entry

	if s.persister != nil {
		if err := s.persister.SaveSnapshot(entry); err != nil {
			log.Printf("snapshot: persist %s: %v", evidence.Key(url), err)
		}
	}
	out := entry
	out.FetchInProgress = true
	return out, nil
}

// IsStale reports whether the URL needs a fresh fetch. Absent entries are
// stale. A non-empty probeHash that differs from the stored content hash
// forces staleness even inside the TTL window.
func (s *Store) IsStale(url, probeHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	if !ok || rec.entry == nil {
		return true
	}
	if probeHash != "" && probeHash != rec.entry.Evidence.ContentHash {
		return true
	}
	return s.now().After(rec.entry.ExpiresAt)
}

// AcquireFetchLock marks a fetch in progress for the URL. It returns false
// when another fetch already holds the lock; the caller should Await that
// fetch instead of starting its own.
func (s *Store) AcquireFetchLock(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.ensure(url)
	if rec.inFlight {
		return false
	}
	rec.inFlight = true
	rec.done = make(chan struct{})
	return true
}

// ReleaseFetchLock clears the in-progress flag and wakes every waiter.
// Releasing an unheld lock is a no-op, so callers can defer it safely on
// failed fetches that never reached Put.
func (s *Store) ReleaseFetchLock(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	if !ok || !rec.inFlight {
		return
	}
	rec.inFlight = false
	if rec.done != nil {
		close(rec.done)
		rec.done = nil
	}
}

// Await blocks until any in-flight fetch for the URL finishes, then returns
// the current entry. The entry may still be absent when the fetch failed
// before a Put. Returns immediately when no fetch is in progress.
func (s *Store) Await(ctx context.Context, url string) (Entry, bool, error) {
	s.mu.Lock()
	rec, ok := s.records[url]
	if !ok || !rec.inFlight || rec.done == nil {
		s.mu.Unlock()
		e, present := s.Get(url)
		return e, present, nil
	}
	done := rec.done
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	case <-done:
	}
	e, present := s.Get(url)
	return e, present, nil
}

// History returns prior revisions for a URL, oldest first. The current
// revision is not included.
func (s *Store) History(url string) []evidence.Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	if !ok {
		return nil
	}
	out := make([]evidence.Evidence, len(rec.history))
	copy(out, rec.history)
	return out
}

// Len counts URLs with a stored entry.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.entry != nil {
			n++
		}
	}
	return n
}

func (s *Store) ensure(url string) *record {
	rec, ok := s.records[url]
	if !ok {
		rec = &record{}
		s.records[url] = rec
	}
	return rec
}
