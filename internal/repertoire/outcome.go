package repertoire

import (
	"context"
	"errors"
	"fmt"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/explorer"
	"github.com/freeeve/repertoire/internal/potency"
)

// outcome returns the owner's expected score and sample size for a line that
// ends at pos, whose statistics are stats.
//
// A mate has no games after it, so the sample comes from the position before
// the mate and the win rate is 1 when the owner delivered it, else 0. Any other thin
// position is treated as an untested novelty: the sample and win rate come
// from the position one ply back, seen through the opponent's results there.
func (e *Expander) outcome(ctx context.Context, owner board.Color, pos *board.Position, stats *explorer.PositionStats) (float64, int64, error) {
	var winRate float64
	var games int64
	rates, err := stats.Rates(owner, e.settings.DrawsHalf)
	switch {
	case err == nil:
		winRate, games = rates.Win, rates.Total
	case !errors.Is(err, potency.ErrNoData):
		return 0, 0, err
	}

	if games == 0 && pos.IsCheckmate() {
		prior, err := e.priorStats(ctx, pos)
		if err != nil {
			return 0, 0, err
		}
		if pos.SideToMove() == owner {
			return 0, prior.Total, nil
		}
		return 1, prior.Total, nil
	}

	if games < e.settings.MinGames {
		prior, err := e.priorStats(ctx, pos)
		if err != nil {
			return 0, 0, err
		}
		priorRates, err := prior.Rates(owner, e.settings.DrawsHalf)
		if errors.Is(err, potency.ErrNoData) {
			return 0, 0, nil
		}
		if err != nil {
			return 0, 0, err
		}
		winRate = 1 - priorRates.Opponent
		if !e.settings.DrawsHalf {
			winRate -= priorRates.Draw
		}
		return clamp01(winRate), priorRates.Total, nil
	}

	return winRate, games, nil
}

func (e *Expander) priorStats(ctx context.Context, pos *board.Position) (*explorer.PositionStats, error) {
	parent, err := pos.Parent()
	if err != nil {
		return nil, fmt.Errorf("%w: roll back: %v", ErrInvalidPgn, err)
	}
	return e.stats.Fetch(ctx, parent.FEN())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
