package matchdto

// Colors on the wire. White always moves first.
const (
	ColorWhite = "white"
	ColorBlack = "black"
)

// Terminal causes on the wire.
const (
	CauseCheckmate   = "checkmate"
	CauseDraw        = "draw"
	CauseResignation = "resignation"
)

// SessionStart is pushed to both participants when an offer is promoted.
// Color is the receiving side's own assignment.
type SessionStart struct {
	SessionID string   `json:"session_id"`
	Color     string   `json:"color"`
	White     string   `json:"white"`
	Black     string   `json:"black"`
	Records   []Record `json:"records"`
}

// SessionEnd is pushed to every still-reachable participant when a session
// reaches a terminal state. Winner is empty on a draw. Records carry both
// players' refreshed counters.
type SessionEnd struct {
	SessionID string   `json:"session_id"`
	Cause     string   `json:"cause"`
	Winner    string   `json:"winner,omitempty"`
	Records   []Record `json:"records"`
}
