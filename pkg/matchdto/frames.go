package matchdto

import "encoding/json"

// Frame types, client → server.
const (
	TypeSetName          = "set-name"
	TypeRequestOfferList = "request-offer-list"
	TypeCreateOffer      = "create-offer"
	TypeCloseOffer       = "close-offer"
	TypeJoinOffer        = "join-offer"
	TypeRelayAction      = "relay-action"
	TypeReportCheckmate  = "report-checkmate"
	TypeReportDraw       = "report-draw"
	TypeResign           = "resign"
	TypeOfferDraw        = "offer-draw"
)

// Frame types, server → client.
const (
	TypeOfferList           = "offer-list"
	TypeOfferListUpdated    = "offer-list-updated"
	TypeSessionStarted      = "session-started"
	TypeActionRelayed       = "action-relayed"
	TypeOpponentDrawOffered = "opponent-draw-offered"
	TypeSessionEnded        = "session-ended"
	TypeError               = "error"
)

// ClientFrame is the envelope for every client → server message. Unused
// fields stay empty; Action is relayed verbatim and never inspected.
type ClientFrame struct {
	Type      string          `json:"type"`
	Name      string          `json:"name,omitempty"`
	OfferID   string          `json:"offer_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Action    json.RawMessage `json:"action,omitempty"`
}

// ServerFrame is the envelope for every server → client message.
type ServerFrame struct {
	Type    string          `json:"type"`
	Offers  []OfferSummary  `json:"offers,omitempty"`
	Session *SessionStart   `json:"session,omitempty"`
	Action  json.RawMessage `json:"action,omitempty"`
	End     *SessionEnd     `json:"end,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo is an explicit rejection surfaced to the originating connection.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}
