package engine

import (
	"fmt"

	"github.com/freeeve/repertoire/internal/board"
)

// MateValue is the magnitude a mate-in-0 maps to. Mate in N scores
// MateValue-N, well above any centipawn evaluation.
const MateValue = 100000

// Score is an evaluation in White's perspective: either centipawns or a
// forced mate for one side.
type Score struct {
	Mate   bool
	CP     int
	MateIn int
	Winner board.Color
}

// Centipawns returns a centipawn score from White's perspective.
func Centipawns(cp int) Score {
	return Score{CP: cp}
}

// MateFor returns a forced mate in n moves for winner.
func MateFor(winner board.Color, n int) Score {
	if n < 0 {
		n = -n
	}
	return Score{Mate: true, MateIn: n, Winner: winner}
}

// fromEngine converts a raw UCI score, which is relative to the side to
// move, into White's perspective. A mate of 0 means the side to move is
// already mated.
func fromEngine(raw int, mate bool, toMove board.Color) Score {
	if toMove == board.Black {
		raw = -raw
	}
	if !mate {
		return Centipawns(raw)
	}
	switch {
	case raw > 0:
		return MateFor(board.White, raw)
	case raw < 0:
		return MateFor(board.Black, -raw)
	default:
		return MateFor(toMove.Opponent(), 0)
	}
}

// Value collapses the score to an integer from perspective's point of view
// so mates compare above and below every centipawn score.
func (s Score) Value(perspective board.Color) int {
	if s.Mate {
		v := MateValue - s.MateIn
		if s.Winner != perspective {
			return -v
		}
		return v
	}
	if perspective == board.Black {
		return -s.CP
	}
	return s.CP
}

// MatesFor reports whether the score is a forced mate delivered by side.
func (s Score) MatesFor(side board.Color) bool {
	return s.Mate && s.Winner == side
}

func (s Score) String() string {
	if s.Mate {
		if s.Winner == board.White {
			return fmt.Sprintf("#%d", s.MateIn)
		}
		return fmt.Sprintf("#-%d", s.MateIn)
	}
	return fmt.Sprintf("%+d", s.CP)
}
