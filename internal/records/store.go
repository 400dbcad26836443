package records

import (
	"context"

	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// Outcome is the increment applied to one player's record.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
	OutcomeLoss Outcome = "loss"
)

// Store is the narrow interface the coordinator consumes. Get returns a
// zeroed record for names it has never seen; Increment returns the updated
// record. Implementations are external collaborators and may fail transiently.
type Store interface {
	Get(ctx context.Context, name string) (matchdto.Record, error)
	Increment(ctx context.Context, name string, outcome Outcome) (matchdto.Record, error)
}

func (o Outcome) field() string {
	switch o {
	case OutcomeWin:
		return "wins"
	case OutcomeDraw:
		return "draws"
	default:
		return "losses"
	}
}
