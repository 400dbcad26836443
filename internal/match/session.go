package match

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrov/chessmatch/internal/obslog"
	"github.com/mpetrov/chessmatch/internal/records"
	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// session is an active two-party match. White moved first; the assignment was
// fixed at promotion. closing marks a termination whose record-store round
// trip is in flight, so a racing second terminate no-ops instead of
// double-incrementing.
type session struct {
	id        string
	whiteID   string
	whiteName string
	blackID   string
	blackName string
	closing   bool
	createdAt time.Time

	// Set once white's increment is durable. A retry after black's increment
	// failed must complete the same termination without re-applying white's.
	applied      bool
	appliedCause TerminalCause
	whiteRec     matchdto.Record
}

func (s *session) peerOf(connID string) (string, bool) {
	switch connID {
	case s.whiteID:
		return s.blackID, true
	case s.blackID:
		return s.whiteID, true
	}
	return "", false
}

// RelayAction forwards an action verbatim to the sender's peer. The
// coordinator performs no legality check. A missing session, or a sender that
// is not a participant, is a benign race with concurrent cleanup: the action
// is dropped silently. Delivery order per session follows call order.
func (h *Hub) RelayAction(sessionID string, action json.RawMessage, senderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		obslog.L().Debug("relay_drop", zap.String("session_id", sessionID), zap.String("reason", "unknown_session"))
		return
	}
	peerID, ok := s.peerOf(senderID)
	if !ok {
		obslog.L().Debug("relay_drop", zap.String("session_id", sessionID), zap.String("reason", "not_participant"))
		return
	}
	if peer, ok := h.conns[peerID]; ok {
		peer.conn.Send(matchdto.ServerFrame{Type: matchdto.TypeActionRelayed, Action: action})
	}
}

// OfferDraw forwards an advisory draw offer to the peer. No pending flag is
// kept: an accept comes back as a report-draw, a decline is silence.
func (h *Hub) OfferDraw(sessionID, senderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	peerID, ok := s.peerOf(senderID)
	if !ok {
		return
	}
	if peer, ok := h.conns[peerID]; ok {
		peer.conn.Send(matchdto.ServerFrame{Type: matchdto.TypeOpponentDrawOffered})
	}
}

// Terminate resolves a session: both players' records are incremented, both
// still-connected participants are notified with the cause and refreshed
// records, both return to Idle, and the session is deleted. Terminating a
// session that is already gone (or already mid-termination) is a no-op. The
// store increments happen before any state mutation; when the store fails the
// session stays intact and the error is retryable. Each player's increment is
// applied exactly once across retries: a partially-applied termination is
// remembered on the session and a retry performs only the missing increment.
func (h *Hub) Terminate(ctx context.Context, sessionID string, cause TerminalCause) error {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok || s.closing {
		h.mu.Unlock()
		return nil
	}
	if by := cause.By(); by != "" && by != s.whiteID && by != s.blackID {
		h.mu.Unlock()
		obslog.L().Debug("terminate_drop", zap.String("session_id", sessionID), zap.String("reason", "not_participant"))
		return nil
	}
	if s.applied {
		// White's record already reflects an earlier attempt; that attempt's
		// cause is the one this call completes.
		cause = s.appliedCause
	}

	whiteName, blackName := s.whiteName, s.blackName
	whiteOutcome, blackOutcome, winnerName := outcomes(s, cause)
	applied, whiteRec := s.applied, s.whiteRec
	s.closing = true
	h.mu.Unlock()

	var err error
	if !applied {
		whiteRec, err = h.store.Increment(ctx, whiteName, whiteOutcome)
		if err == nil {
			h.mu.Lock()
			if s, ok := h.sessions[sessionID]; ok {
				s.applied = true
				s.appliedCause = cause
				s.whiteRec = whiteRec
			}
			h.mu.Unlock()
		}
	}
	if err == nil {
		var blackRec matchdto.Record
		blackRec, err = h.store.Increment(ctx, blackName, blackOutcome)
		if err == nil {
			h.finishSession(ctx, sessionID, cause, winnerName, whiteRec, blackRec)
			return nil
		}
	}

	// Store failure: reopen the session so a retry can resolve it.
	h.mu.Lock()
	if s, ok := h.sessions[sessionID]; ok {
		s.closing = false
	}
	h.mu.Unlock()
	return fmt.Errorf("record store: %w", err)
}

func (h *Hub) finishSession(ctx context.Context, sessionID string, cause TerminalCause, winnerName string, whiteRec, blackRec matchdto.Record) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sessionID)

	end := matchdto.SessionEnd{
		SessionID: sessionID,
		Cause:     string(cause.Kind()),
		Winner:    winnerName,
		Records:   []matchdto.Record{whiteRec, blackRec},
	}
	for _, connID := range []string{s.whiteID, s.blackID} {
		e, ok := h.conns[connID]
		if !ok {
			continue // disconnected participants are simply not reachable
		}
		e.state = StateIdle
		e.sessionID = ""
		e.conn.Send(matchdto.ServerFrame{Type: matchdto.TypeSessionEnded, End: &end})
	}
	h.mu.Unlock()

	obslog.L().Info("session_end",
		zap.String("session_id", sessionID),
		zap.String("cause", string(cause.Kind())),
		zap.String("winner", winnerName),
	)

	if h.archive != nil {
		m := &ArchivedMatch{
			SessionID: sessionID,
			White:     s.whiteName,
			Black:     s.blackName,
			Cause:     cause.Kind(),
			Winner:    winnerName,
			StartedAt: s.createdAt,
			EndedAt:   time.Now(),
		}
		if err := h.archive.SaveMatch(ctx, m); err != nil {
			obslog.L().Error("archive_error", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}

// outcomes maps a terminal cause onto both players' record increments and the
// winner's display name. The reporting side of a checkmate is trusted as the
// winner; the coordinator does not re-derive outcomes.
func outcomes(s *session, cause TerminalCause) (white, black records.Outcome, winnerName string) {
	switch cause.Kind() {
	case KindDraw:
		return records.OutcomeDraw, records.OutcomeDraw, ""
	case KindCheckmate:
		if cause.By() == s.whiteID {
			return records.OutcomeWin, records.OutcomeLoss, s.whiteName
		}
		return records.OutcomeLoss, records.OutcomeWin, s.blackName
	default: // resignation: By loses
		if cause.By() == s.whiteID {
			return records.OutcomeLoss, records.OutcomeWin, s.blackName
		}
		return records.OutcomeWin, records.OutcomeLoss, s.whiteName
	}
}
