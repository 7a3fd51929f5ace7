package repertoire

import (
	"github.com/freeeve/repertoire/internal/board"
)

// Step is one opponent move on a line with the share of games it was played in.
type Step struct {
	Move        string  `json:"move"`
	Probability float64 `json:"probability"`
}

// OpeningLine is a line still open for expansion. Lines are values: the
// extension helpers copy, so siblings never share backing arrays.
type OpeningLine struct {
	Moves      []string
	Likelihood float64
	Path       []Step
	Owner      board.Color
}

// PGN renders the line as movetext.
func (l OpeningLine) PGN() string {
	return board.FormatMovetext(l.Moves)
}

// withOpponent appends an opponent move and its probability.
func (l OpeningLine) withOpponent(san string, playRate float64) OpeningLine {
	moves := make([]string, len(l.Moves), len(l.Moves)+2)
	copy(moves, l.Moves)
	path := make([]Step, len(l.Path), len(l.Path)+1)
	copy(path, l.Path)
	return OpeningLine{
		Moves:      append(moves, san),
		Likelihood: l.Likelihood * playRate,
		Path:       append(path, Step{Move: san, Probability: playRate}),
		Owner:      l.Owner,
	}
}

// withReply appends the owner's move.
func (l OpeningLine) withReply(san string) OpeningLine {
	moves := make([]string, len(l.Moves), len(l.Moves)+1)
	copy(moves, l.Moves)
	path := make([]Step, len(l.Path))
	copy(path, l.Path)
	return OpeningLine{
		Moves:      append(moves, san),
		Likelihood: l.Likelihood,
		Path:       path,
		Owner:      l.Owner,
	}
}

// TerminalLine is a finished line with its expected outcome for the owner.
type TerminalLine struct {
	Moves      []string `json:"moves"`
	PGN        string   `json:"pgn"`
	Likelihood float64  `json:"likelihood"`
	Path       []Step   `json:"path"`
	WinRate    float64  `json:"win_rate"`
	Games      int64    `json:"games"`
}

func (l OpeningLine) terminal(winRate float64, games int64) TerminalLine {
	moves := make([]string, len(l.Moves))
	copy(moves, l.Moves)
	path := make([]Step, len(l.Path))
	copy(path, l.Path)
	return TerminalLine{
		Moves:      moves,
		PGN:        board.FormatMovetext(moves),
		Likelihood: l.Likelihood,
		Path:       path,
		WinRate:    winRate,
		Games:      games,
	}
}
