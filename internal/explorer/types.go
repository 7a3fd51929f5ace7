package explorer

import (
	"fmt"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/potency"
)

// response is the opening explorer JSON body.
type response struct {
	White   int64          `json:"white"`
	Draws   int64          `json:"draws"`
	Black   int64          `json:"black"`
	Moves   []moveResponse `json:"moves"`
	Opening *Opening       `json:"opening"`
}

type moveResponse struct {
	UCI   string `json:"uci"`
	SAN   string `json:"san"`
	White int64  `json:"white"`
	Draws int64  `json:"draws"`
	Black int64  `json:"black"`
}

// Opening is the explorer's name for a position, when it has one.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// PositionStats are the aggregate outcomes at a position and the replies
// played from it.
type PositionStats struct {
	White   int64
	Black   int64
	Draws   int64
	Total   int64
	Moves   []MoveStat
	Opening *Opening
}

// MoveStat is one reply at a position.
type MoveStat struct {
	SAN   string
	UCI   string
	White int64
	Black int64
	Draws int64
	Total int64

	// PlayRate is the reply's share of the position's games.
	PlayRate float64
	// Win rates use plain counts: draws are reported separately.
	WhiteRate float64
	BlackRate float64
	DrawRate  float64
}

// Wins returns the count of games won by side.
func (m MoveStat) Wins(side board.Color) int64 {
	if side == board.White {
		return m.White
	}
	return m.Black
}

// Losses returns the count of games lost by side.
func (m MoveStat) Losses(side board.Color) int64 {
	return m.Wins(side.Opponent())
}

// Rates returns the outcome shares at the position for side.
func (s PositionStats) Rates(side board.Color, drawsHalf bool) (potency.Rates, error) {
	if side == board.White {
		return potency.FromCounts(s.White, s.Black, s.Draws, drawsHalf)
	}
	return potency.FromCounts(s.Black, s.White, s.Draws, drawsHalf)
}

// Rates returns the outcome shares after the reply for side.
func (m MoveStat) Rates(side board.Color, drawsHalf bool) (potency.Rates, error) {
	return potency.FromCounts(m.Wins(side), m.Losses(side), m.Draws, drawsHalf)
}

// parse validates the body and derives totals and rates.
func (r *response) parse() (*PositionStats, error) {
	if r.White < 0 || r.Black < 0 || r.Draws < 0 {
		return nil, fmt.Errorf("%w: negative counts", ErrDataUnavailable)
	}
	stats := &PositionStats{
		White:   r.White,
		Black:   r.Black,
		Draws:   r.Draws,
		Total:   r.White + r.Black + r.Draws,
		Opening: r.Opening,
		Moves:   make([]MoveStat, 0, len(r.Moves)),
	}
	for _, m := range r.Moves {
		ms := MoveStat{
			SAN:   m.SAN,
			UCI:   m.UCI,
			White: m.White,
			Black: m.Black,
			Draws: m.Draws,
			Total: m.White + m.Black + m.Draws,
		}
		if ms.Total > stats.Total {
			return nil, fmt.Errorf("%w: move %s has %d games, position has %d",
				ErrDataUnavailable, m.SAN, ms.Total, stats.Total)
		}
		if stats.Total > 0 {
			ms.PlayRate = float64(ms.Total) / float64(stats.Total)
		}
		if rates, err := potency.FromCounts(ms.White, ms.Black, ms.Draws, false); err == nil {
			ms.WhiteRate = rates.Win
			ms.BlackRate = rates.Opponent
			ms.DrawRate = rates.Draw
		}
		stats.Moves = append(stats.Moves, ms)
	}
	return stats, nil
}
