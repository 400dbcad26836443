package records

import (
	"context"
	"strings"
	"sync"

	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// MemoryStore is a process-local Store used in tests and single-node runs
// without Redis.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]matchdto.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]matchdto.Record)}
}

func (s *MemoryStore) Get(_ context.Context, name string) (matchdto.Record, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[name]
	if !ok {
		return matchdto.Record{Name: name}, nil
	}
	return rec, nil
}

func (s *MemoryStore) Increment(_ context.Context, name string, outcome Outcome) (matchdto.Record, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[name]
	if !ok {
		rec = matchdto.Record{Name: name}
	}
	switch outcome {
	case OutcomeWin:
		rec.Wins++
	case OutcomeDraw:
		rec.Draws++
	default:
		rec.Losses++
	}
	s.recs[name] = rec
	return rec, nil
}
