// Package repertoire grows an opening repertoire from a starting line. It
// walks opponent continuations from explorer statistics, picks the owner's
// reply by confidence-bounded win rate checked against an engine, and
// collects the lines where expansion stops.
package repertoire

import (
	"context"
	"errors"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/engine"
	"github.com/freeeve/repertoire/internal/explorer"
)

var (
	// ErrInvalidPgn is returned when a starting line cannot be parsed or replayed.
	ErrInvalidPgn = errors.New("invalid pgn")
	// ErrMoveNotFound is returned when a move of the starting line is missing
	// from the explorer statistics of the position it was played in.
	ErrMoveNotFound = errors.New("move not found in statistics")
)

// StatsProvider answers move statistics for a FEN.
type StatsProvider interface {
	Fetch(ctx context.Context, fen string) (*explorer.PositionStats, error)
}

// Evaluator plays and scores positions. Scores are from White's perspective.
type Evaluator interface {
	BestMove(ctx context.Context, pos *board.Position, depth int) (engine.Move, error)
	Evaluate(ctx context.Context, pos *board.Position, depth int) (engine.Score, error)
}

// ReplySelector picks the owner's reply at a position.
type ReplySelector interface {
	SelectReply(ctx context.Context, pos *board.Position, stats *explorer.PositionStats) (Selection, error)
}

// Settings are the thresholds driving expansion and selection.
type Settings struct {
	// DepthLikelihood is the smallest cumulative probability a continuation
	// may reach and still be expanded.
	DepthLikelihood float64
	Alpha           float64
	MinPlayRate     float64
	// MinGames is the sample size a reply needs; ContinuationGames is the
	// sample size an opponent continuation needs.
	MinGames          int64
	ContinuationGames int64
	DrawsHalf         bool

	Engine       bool
	EngineFinish bool
	EngineDepth  int
	// Centipawn limits, from the owner's perspective.
	SoundnessLimit  int
	MoveLossLimit   int
	IgnoreLossLimit int
	ReplyCheck      bool

	LongToShort bool
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() Settings {
	return Settings{
		DepthLikelihood:   0.05,
		Alpha:             0.001,
		MinPlayRate:       0.001,
		MinGames:          19,
		ContinuationGames: 10,
		EngineDepth:       5,
		SoundnessLimit:    -99,
		MoveLossLimit:     -99,
		IgnoreLossLimit:   300,
	}
}
