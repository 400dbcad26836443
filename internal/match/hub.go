package match

import (
	"context"
	"sync"
	"time"

	"github.com/mpetrov/chessmatch/internal/records"
)

// Hub owns the combined registry, lobby, and session state. One mutex guards
// all three containers: offer promotion and session termination each touch
// more than one of them, and per-container locks would let those interleave.
// The only I/O performed while holding the mutex is the non-blocking enqueue
// into a connection's outbox; record-store round trips happen between lock
// sections and revalidate state on re-entry.
type Hub struct {
	mu sync.Mutex

	conns    map[string]*connEntry
	offers   map[string]*offer
	order    []string // offer ids, insertion order
	sessions map[string]*session

	store   records.Store
	archive MatchArchiver
}

func NewHub(store records.Store) *Hub {
	return &Hub{
		conns:    make(map[string]*connEntry),
		offers:   make(map[string]*offer),
		sessions: make(map[string]*session),
		store:    store,
	}
}

// MatchArchiver persists finished matches. Optional; failures never affect
// coordinator state.
type MatchArchiver interface {
	SaveMatch(ctx context.Context, m *ArchivedMatch) error
}

// ArchivedMatch is one terminated session's durable summary.
type ArchivedMatch struct {
	SessionID string
	White     string
	Black     string
	Cause     CauseKind
	Winner    string // name, empty on draw
	StartedAt time.Time
	EndedAt   time.Time
}

// AttachArchive wires an archive repository for finished matches.
func (h *Hub) AttachArchive(a MatchArchiver) {
	if h != nil {
		h.archive = a
	}
}

// CloseAll force-closes every registered connection without terminal
// processing. Used on shutdown, after the listeners stop accepting.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.conns {
		e.conn.Close()
	}
	h.conns = make(map[string]*connEntry)
	h.offers = make(map[string]*offer)
	h.order = nil
	h.sessions = make(map[string]*session)
}
