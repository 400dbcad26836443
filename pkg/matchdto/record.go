package matchdto

// Record holds cumulative results keyed by display name. Names are
// caller-supplied strings, not authenticated identities.
type Record struct {
	Name   string `json:"name"`
	Wins   int64  `json:"wins"`
	Draws  int64  `json:"draws"`
	Losses int64  `json:"losses"`
}
