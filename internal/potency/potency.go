// Package potency turns game outcome counts into win rates and
// normal-approximation confidence intervals.
package potency

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput is returned for NaN, out-of-range or negative inputs.
	ErrInvalidInput = errors.New("invalid potency input")
	// ErrNoData is returned when a position has no recorded games.
	ErrNoData = errors.New("no games played at this position")
)

// Score is a win-rate estimate with its confidence bounds.
type Score struct {
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Games int64   `json:"games"`
}

// Forced is the score given to a move that forces mate.
func Forced(games int64) Score {
	return Score{Value: 1, Lower: 1, Upper: 1, Games: games}
}

// Zeroed clears the estimate and keeps the sample size.
func (s Score) Zeroed() Score {
	return Score{Games: s.Games}
}

// Usable reports whether the lower bound leaves room for the move.
func (s Score) Usable() bool {
	return s.Lower > 0
}

// Rates are outcome shares at a position from one side's point of view.
type Rates struct {
	Win      float64
	Opponent float64
	Draw     float64
	Total    int64
}

// Z returns the two-sided standard normal quantile z(1 - alpha/2).
func Z(alpha float64) (float64, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha >= 1 {
		return 0, fmt.Errorf("%w: alpha %v not in (0,1)", ErrInvalidInput, alpha)
	}
	return math.Sqrt2 * math.Erfinv(1-alpha), nil
}

// Compute scores a move. Moves played in no more than minGames games, or
// with a play rate no higher than minPlayRate, get an all-zero score.
func Compute(winRate float64, games int64, playRate float64, minGames int64, minPlayRate, alpha float64) (Score, error) {
	if math.IsNaN(winRate) || winRate < 0 || winRate > 1 {
		return Score{}, fmt.Errorf("%w: win rate %v", ErrInvalidInput, winRate)
	}
	if math.IsNaN(playRate) || playRate < 0 {
		return Score{}, fmt.Errorf("%w: play rate %v", ErrInvalidInput, playRate)
	}
	if games < 0 {
		return Score{}, fmt.Errorf("%w: games %d", ErrInvalidInput, games)
	}
	z, err := Z(alpha)
	if err != nil {
		return Score{}, err
	}
	if games <= minGames || playRate <= minPlayRate {
		return Score{Games: games}, nil
	}

	half := z * math.Sqrt(winRate*(1-winRate)/float64(games))
	return Score{
		Value: winRate,
		Lower: math.Max(0, winRate-half),
		Upper: math.Min(1, math.Max(0, winRate+half)),
		Games: games,
	}, nil
}

// FromCounts derives the outcome shares for the side whose wins are given.
// With drawsHalf a draw counts half a win for both sides.
func FromCounts(wins, losses, draws int64, drawsHalf bool) (Rates, error) {
	if wins < 0 || losses < 0 || draws < 0 {
		return Rates{}, fmt.Errorf("%w: counts %d/%d/%d", ErrInvalidInput, wins, losses, draws)
	}
	n := wins + losses + draws
	if n == 0 {
		return Rates{}, ErrNoData
	}
	total := float64(n)
	r := Rates{
		Win:      float64(wins) / total,
		Opponent: float64(losses) / total,
		Draw:     float64(draws) / total,
		Total:    n,
	}
	if drawsHalf {
		r.Win += r.Draw / 2
		r.Opponent += r.Draw / 2
	}
	return r, nil
}
