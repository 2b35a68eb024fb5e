package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/payment"
)

var ErrJobNotFound = domain.ErrJobNotFound

// entry is one live job. mu serializes every lifecycle mutation of rec.
type entry struct {
	mu      sync.Mutex
	rec     domain.JobRecord
	monitor *payment.Monitor
}

func (e *entry) snapshot() (domain.JobRecord, *payment.Monitor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), e.monitor
}

// Store holds live jobs in memory. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*entry)}
}

func (s *Store) insert(rec domain.JobRecord) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[rec.ID]; exists {
		return nil, errors.New("duplicate job id " + rec.ID)
	}
	e := &entry{rec: rec}
	s.jobs[rec.ID] = e
	return e, nil
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	return e, ok
}

// Get returns a copy of the job record.
func (s *Store) Get(id string) (domain.JobRecord, error) {
	e, ok := s.lookup(id)
	if !ok {
		return domain.JobRecord{}, ErrJobNotFound
	}
	rec, _ := e.snapshot()
	return rec, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) entries() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e)
	}
	return out
}

// EvictTerminal drops completed and failed jobs last updated before cutoff
// and returns how many were removed.
func (s *Store) EvictTerminal(cutoff time.Time) int {
	var stale []string
	for _, e := range s.entries() {
		e.mu.Lock()
		if e.rec.Lifecycle.Terminal() && e.rec.UpdatedAt.Before(cutoff) {
			stale = append(stale, e.rec.ID)
		}
		e.mu.Unlock()
	}
	if len(stale) == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range stale {
		delete(s.jobs, id)
	}
	return len(stale)
}
