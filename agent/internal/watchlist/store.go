// Package watchlist tracks admitted candidates until they either confirm
// momentum and fire once, or expire.
package watchlist

import (
	"sort"
	"sync"
	"time"

	"mint-sniper/agent/internal/models"
)

type AdmitResult int

const (
	Admitted AdmitResult = iota
	AlreadyTracked
	AlreadySent
	InvalidBaseline
)

func (r AdmitResult) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case AlreadyTracked:
		return "already_tracked"
	case AlreadySent:
		return "already_sent"
	case InvalidBaseline:
		return "invalid_baseline"
	}
	return "unknown"
}

// Store is the single owner of watchlist entries and the seen set.
// Every method is atomic with respect to the others.
type Store struct {
	mu      sync.Mutex
	entries map[string]*models.WatchlistEntry
	seen    map[string]time.Time
	expiry  time.Duration
}

func NewStore(expiry time.Duration) *Store {
	return &Store{
		entries: make(map[string]*models.WatchlistEntry),
		seen:    make(map[string]time.Time),
		expiry:  expiry,
	}
}

// AdmitIfAbsent adds mint as PENDING with the given baseline. An existing
// live entry is left untouched.
func (s *Store) AdmitIfAbsent(mint string, baseline float64, now time.Time) AdmitResult {
	if baseline <= 0 {
		return InvalidBaseline
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[mint]; ok {
		return AlreadySent
	}
	if _, ok := s.entries[mint]; ok {
		return AlreadyTracked
	}
	s.entries[mint] = &models.WatchlistEntry{
		Mint:              mint,
		BaselineMarketCap: baseline,
		PreviousMarketCap: baseline,
		AddedAt:           now,
		NextPollAt:        now,
		State:             models.StatePending,
	}
	return Admitted
}

// Due returns copies of pending entries whose next poll time has passed,
// oldest admission first.
func (s *Store) Due(now time.Time) []models.WatchlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.WatchlistEntry
	for _, e := range s.entries {
		if e.State == models.StatePending && !e.NextPollAt.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].AddedAt.Before(due[j].AddedAt) })
	return due
}

// EvictExpired removes pending entries older than the expiry horizon.
func (s *Store) EvictExpired(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for mint, e := range s.entries {
		if e.State == models.StatePending && now.Sub(e.AddedAt) > s.expiry {
			e.State = models.StateExpired
			delete(s.entries, mint)
			evicted = append(evicted, mint)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Observe records a poll result and schedules the next poll.
func (s *Store) Observe(mint string, mcap, volume float64, next time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[mint]
	if !ok || e.State != models.StatePending {
		return false
	}
	e.PreviousMarketCap = mcap
	e.LastVolume = volume
	e.NextPollAt = next
	return true
}

// Reschedule moves the next poll without touching observations.
func (s *Store) Reschedule(mint string, next time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[mint]
	if !ok || e.State != models.StatePending {
		return false
	}
	e.NextPollAt = next
	return true
}

// MarkSent claims the single alert for mint. It returns true exactly once per
// mint; the entry is removed and the mint joins the seen set.
func (s *Store) MarkSent(mint string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[mint]; ok {
		return false
	}
	e, ok := s.entries[mint]
	if !ok || e.State != models.StatePending {
		return false
	}
	e.State = models.StateSent
	e.Sent = true
	delete(s.entries, mint)
	s.seen[mint] = now
	return true
}

func (s *Store) Get(mint string) (models.WatchlistEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[mint]
	if !ok {
		return models.WatchlistEntry{}, false
	}
	return *e, true
}

func (s *Store) IsTracked(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[mint]
	return ok
}

func (s *Store) IsSeen(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[mint]
	return ok
}

func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) SeenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// RecentSeen returns up to n alerted mints, most recent first. n <= 0 means all.
func (s *Store) RecentSeen(n int) []string {
	s.mu.Lock()
	type fired struct {
		mint string
		at   time.Time
	}
	all := make([]fired, 0, len(s.seen))
	for mint, at := range s.seen {
		all = append(all, fired{mint, at})
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].at.Equal(all[j].at) {
			return all[i].at.After(all[j].at)
		}
		return all[i].mint < all[j].mint
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]string, len(all))
	for i, f := range all {
		out[i] = f.mint
	}
	return out
}

// Snapshot copies pending entries (oldest first) and the seen set.
func (s *Store) Snapshot() ([]models.WatchlistEntry, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.WatchlistEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AddedAt.Before(entries[j].AddedAt) })

	seen := make([]string, 0, len(s.seen))
	for mint := range s.seen {
		seen = append(seen, mint)
	}
	sort.Strings(seen)
	return entries, seen
}

// Restore loads persisted state. Seen mints are added first so an entry for an
// already-alerted mint is never resurrected. Returns how many entries were restored.
func (s *Store) Restore(entries []models.WatchlistEntry, seen []string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mint := range seen {
		if _, ok := s.seen[mint]; !ok {
			s.seen[mint] = now
		}
	}

	restored := 0
	for _, e := range entries {
		if e.Sent || e.State.Terminal() || e.BaselineMarketCap <= 0 || e.Mint == "" {
			continue
		}
		if _, ok := s.seen[e.Mint]; ok {
			continue
		}
		if _, ok := s.entries[e.Mint]; ok {
			continue
		}
		cp := e
		cp.State = models.StatePending
		if cp.PreviousMarketCap <= 0 {
			cp.PreviousMarketCap = cp.BaselineMarketCap
		}
		if cp.AddedAt.IsZero() {
			cp.AddedAt = now
		}
		s.entries[e.Mint] = &cp
		restored++
	}
	return restored
}
