package match

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpetrov/chessmatch/internal/obslog"
	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// offer is one open game advertisement. The creator and the record snapshot
// are immutable until the offer is promoted or closed.
type offer struct {
	id          string
	creatorID   string
	creatorName string
	snapshot    matchdto.Record
	createdAt   time.Time
}

// CreateOffer opens an offer for an Idle connection. The creator's record is
// snapshotted from the store before any state changes; a store failure leaves
// the lobby untouched and is retryable. On success the updated offer list is
// broadcast to every Idle connection.
func (h *Hub) CreateOffer(ctx context.Context, connID, name string) error {
	name = strings.TrimSpace(name)

	h.mu.Lock()
	e, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownConn
	}
	if e.state != StateIdle {
		h.mu.Unlock()
		return ErrAlreadyOffering
	}
	if name != "" {
		e.name = name
	}
	snapName := e.name
	h.mu.Unlock()

	snapshot, err := h.store.Get(ctx, snapName)
	if err != nil {
		return fmt.Errorf("record store: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok = h.conns[connID]
	if !ok {
		return ErrUnknownConn
	}
	if e.state != StateIdle {
		// A racing create or join won while we were at the store.
		return ErrAlreadyOffering
	}

	o := &offer{
		id:          uuid.NewString(),
		creatorID:   connID,
		creatorName: snapName,
		snapshot:    snapshot,
		createdAt:   time.Now(),
	}
	h.offers[o.id] = o
	h.order = append(h.order, o.id)
	e.state = StateOffering
	e.offerID = o.id

	h.broadcastOffersLocked()
	obslog.L().Info("offer_create",
		zap.String("offer_id", o.id),
		zap.String("conn_id", connID),
		zap.String("creator", snapName),
	)
	return nil
}

// CloseOffer removes the requester's own offer and returns it to Idle.
func (h *Hub) CloseOffer(offerID, requesterID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	o, ok := h.offers[offerID]
	if !ok {
		return ErrUnknownOffer
	}
	if o.creatorID != requesterID {
		return ErrNotOwner
	}
	h.removeOfferLocked(offerID)
	if e, ok := h.conns[requesterID]; ok {
		e.state = StateIdle
		e.offerID = ""
	}
	h.broadcastOffersLocked()
	obslog.L().Info("offer_close", zap.String("offer_id", offerID), zap.String("conn_id", requesterID))
	return nil
}

// JoinOffer promotes an offer into a session: colors are assigned by an
// unbiased coin flip, both connections move to InSession, the promoted offer
// and every other offer owned by either participant are removed in one batch
// with a single rebroadcast, and both sides receive session-started.
func (h *Hub) JoinOffer(ctx context.Context, offerID, joinerName, joinerID string) error {
	joinerName = strings.TrimSpace(joinerName)

	h.mu.Lock()
	o, ok := h.offers[offerID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownOffer
	}
	if o.creatorID == joinerID {
		h.mu.Unlock()
		return ErrSelfJoin
	}
	je, ok := h.conns[joinerID]
	if !ok || je.state == StateInSession {
		h.mu.Unlock()
		return ErrUnknownConn
	}
	if joinerName != "" {
		je.name = joinerName
	}
	jName := je.name
	h.mu.Unlock()

	joinerRec, err := h.store.Get(ctx, jName)
	if err != nil {
		return fmt.Errorf("record store: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Revalidate: the offer may have been closed or promoted, and either side
	// may have disconnected, while we were at the store.
	o, ok = h.offers[offerID]
	if !ok {
		return ErrUnknownOffer
	}
	je, ok = h.conns[joinerID]
	if !ok || je.state == StateInSession {
		return ErrUnknownConn
	}
	ce, ok := h.conns[o.creatorID]
	if !ok {
		return ErrUnknownOffer
	}

	whiteID, whiteName, whiteRec := o.creatorID, o.creatorName, o.snapshot
	blackID, blackName, blackRec := joinerID, jName, joinerRec
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 0 {
		whiteID, whiteName, whiteRec, blackID, blackName, blackRec =
			blackID, blackName, blackRec, whiteID, whiteName, whiteRec
	}

	s := &session{
		id:        uuid.NewString(),
		whiteID:   whiteID,
		whiteName: whiteName,
		blackID:   blackID,
		blackName: blackName,
		createdAt: time.Now(),
	}
	h.sessions[s.id] = s

	ce.state = StateInSession
	ce.offerID = ""
	ce.sessionID = s.id
	je.state = StateInSession
	je.offerID = ""
	je.sessionID = s.id

	// One removal batch: the promoted offer plus any other offer either
	// participant still hosts, then a single rebroadcast.
	h.removeOfferLocked(offerID)
	h.purgeOffersByLocked(o.creatorID, joinerID)
	h.broadcastOffersLocked()

	recs := []matchdto.Record{whiteRec, blackRec}
	start := matchdto.SessionStart{
		SessionID: s.id,
		White:     whiteName,
		Black:     blackName,
		Records:   recs,
	}
	for _, p := range []struct {
		entry *connEntry
		color string
	}{{h.conns[whiteID], matchdto.ColorWhite}, {h.conns[blackID], matchdto.ColorBlack}} {
		msg := start
		msg.Color = p.color
		p.entry.conn.Send(matchdto.ServerFrame{Type: matchdto.TypeSessionStarted, Session: &msg})
	}

	obslog.L().Info("session_start",
		zap.String("session_id", s.id),
		zap.String("offer_id", offerID),
		zap.String("white", whiteName),
		zap.String("black", blackName),
	)
	return nil
}

// ListOffers returns a snapshot of open offers in insertion order.
func (h *Hub) ListOffers() []matchdto.OfferSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listOffersLocked()
}

func (h *Hub) listOffersLocked() []matchdto.OfferSummary {
	out := make([]matchdto.OfferSummary, 0, len(h.order))
	for _, id := range h.order {
		o, ok := h.offers[id]
		if !ok {
			continue
		}
		out = append(out, matchdto.OfferSummary{ID: o.id, Creator: o.creatorName, Record: o.snapshot})
	}
	return out
}

// broadcastOffersLocked pushes the current list to every Idle connection. It
// is the single publish step at the tail of each mutating lobby operation, so
// broadcast order always follows state order.
func (h *Hub) broadcastOffersLocked() {
	frame := matchdto.ServerFrame{Type: matchdto.TypeOfferListUpdated, Offers: h.listOffersLocked()}
	for _, e := range h.conns {
		if e.state == StateIdle {
			e.conn.Send(frame)
		}
	}
}

func (h *Hub) removeOfferLocked(offerID string) {
	delete(h.offers, offerID)
	for i, id := range h.order {
		if id == offerID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// purgeOffersByLocked drops every remaining offer created by the given
// connections. A player entering a session must not stay listed as a host.
func (h *Hub) purgeOffersByLocked(connIDs ...string) {
	for _, connID := range connIDs {
		for id, o := range h.offers {
			if o.creatorID != connID {
				continue
			}
			h.removeOfferLocked(id)
			obslog.L().Info("offer_purge", zap.String("offer_id", id), zap.String("conn_id", connID))
		}
	}
}
