package match

import (
	"errors"

	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// ConnState is a connection's membership state. A connection is in exactly
// one state at a time.
type ConnState string

const (
	StateIdle      ConnState = "IDLE"
	StateOffering  ConnState = "OFFERING"
	StateInSession ConnState = "IN_SESSION"
)

// Conn is the transport handle the hub coordinates. It is supplied by the
// gateway; the hub never inspects it beyond delivery. Send must be
// non-blocking and must deliver frames in call order. Close must be
// idempotent and safe to call while Send is in flight.
type Conn interface {
	Send(frame matchdto.ServerFrame)
	Close()
}

// Validation errors, surfaced back to the originating connection.
var (
	ErrAlreadyOffering = errors.New("connection already has an open offer")
	ErrNotOwner        = errors.New("offer belongs to another connection")
	ErrSelfJoin        = errors.New("cannot join your own offer")
)

// Benign races: the entity was already cleaned up by a concurrent event.
// Callers drop these silently.
var (
	ErrUnknownOffer = errors.New("offer not found")
	ErrUnknownConn  = errors.New("connection not registered")
)

// CauseKind discriminates the terminal cause of a session.
type CauseKind string

const (
	KindCheckmate   CauseKind = "checkmate"
	KindDraw        CauseKind = "draw"
	KindResignation CauseKind = "resignation"
)

// TerminalCause is the reason a session ends. Checkmate and Resignation carry
// the connection id they were triggered by; Draw carries none. Constructed
// only through the three constructors, so an invalid combination cannot be
// expressed.
type TerminalCause struct {
	kind CauseKind
	by   string
}

// Checkmate records the reporting connection as the winner. The report is
// trusted verbatim; no adjudication happens server-side.
func Checkmate(reportedBy string) TerminalCause {
	return TerminalCause{kind: KindCheckmate, by: reportedBy}
}

func Draw() TerminalCause { return TerminalCause{kind: KindDraw} }

// Resignation records the resigning connection as the loser. Disconnects
// while in a session route through here as well.
func Resignation(by string) TerminalCause {
	return TerminalCause{kind: KindResignation, by: by}
}

func (c TerminalCause) Kind() CauseKind { return c.kind }

// By returns the connection id the cause was triggered by, empty for draws.
func (c TerminalCause) By() string { return c.by }
