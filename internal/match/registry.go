package match

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpetrov/chessmatch/internal/obslog"
)

type connEntry struct {
	conn  Conn
	name  string
	state ConnState

	offerID   string // set while Offering
	sessionID string // set while InSession
}

// Join registers a new transport handle as Idle and returns its opaque id.
// The id is unique for the lifetime of the connection and never keys on the
// transport object itself.
func (h *Hub) Join(c Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.conns[id] = &connEntry{conn: c, state: StateIdle}
	h.mu.Unlock()
	obslog.L().Info("conn_join", zap.String("conn_id", id))
	return id
}

// SetName updates the connection's display name. Names are advisory strings;
// offers and sessions snapshot them at creation.
func (h *Hub) SetName(id, name string) {
	name = strings.TrimSpace(name)
	h.mu.Lock()
	if e, ok := h.conns[id]; ok {
		e.name = name
	}
	h.mu.Unlock()
}

// Leave is the single transport-disconnect entry point. It dispatches cleanup
// by membership: an open offer is closed and the list rebroadcast, an active
// session is terminated as a resignation by the leaving side. Calling it for
// an unknown or already-cleaned-up connection is a no-op, which absorbs the
// race between a terminal event and a near-simultaneous disconnect.
func (h *Hub) Leave(ctx context.Context, id string) {
	h.mu.Lock()
	e, ok := h.conns[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	state := e.state
	offerID := e.offerID
	sessionID := e.sessionID
	delete(h.conns, id)

	if state == StateOffering {
		if _, ok := h.offers[offerID]; ok {
			h.removeOfferLocked(offerID)
			h.broadcastOffersLocked()
		}
	}
	h.mu.Unlock()

	obslog.L().Info("conn_leave", zap.String("conn_id", id), zap.String("state", string(state)))

	if state == StateInSession {
		if err := h.Terminate(ctx, sessionID, Resignation(id)); err != nil {
			// Nobody retries a disconnect; the session stays for the peer to
			// resign or report against once the store recovers.
			obslog.L().Warn("disconnect_terminate_error",
				zap.String("conn_id", id),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
}

// State reports the membership state of a connection.
func (h *Hub) State(id string) (ConnState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.conns[id]
	if !ok {
		return "", false
	}
	return e.state, true
}
