package repertoire

import (
	"context"
	"fmt"
	"testing"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/engine"
	"github.com/freeeve/repertoire/internal/explorer"
)

// fakeStats serves canned statistics by FEN. Unknown positions have no games.
type fakeStats struct {
	byFEN   map[string]*explorer.PositionStats
	fail    map[string]error
	fetches map[string]int
}

func newFakeStats() *fakeStats {
	return &fakeStats{
		byFEN:   make(map[string]*explorer.PositionStats),
		fail:    make(map[string]error),
		fetches: make(map[string]int),
	}
}

func (f *fakeStats) Fetch(_ context.Context, fen string) (*explorer.PositionStats, error) {
	f.fetches[fen]++
	if err, ok := f.fail[fen]; ok {
		return nil, err
	}
	if s, ok := f.byFEN[fen]; ok {
		return s, nil
	}
	return &explorer.PositionStats{}, nil
}

func (f *fakeStats) set(t *testing.T, movetext string, s *explorer.PositionStats) {
	t.Helper()
	f.byFEN[fenAfter(t, movetext)] = s
}

// fakeEval answers best moves and scores by FEN.
type fakeEval struct {
	best      map[string]string
	scores    map[string]engine.Score
	fail      map[string]error
	evaluated map[string]int
	evals     int
	bestCalls int
}

func newFakeEval() *fakeEval {
	return &fakeEval{
		best:      make(map[string]string),
		scores:    make(map[string]engine.Score),
		fail:      make(map[string]error),
		evaluated: make(map[string]int),
	}
}

func (f *fakeEval) BestMove(_ context.Context, pos *board.Position, _ int) (engine.Move, error) {
	f.bestCalls++
	if err, ok := f.fail["best:"+pos.FEN()]; ok {
		return engine.Move{}, err
	}
	uci, ok := f.best[pos.FEN()]
	if !ok {
		return engine.Move{}, fmt.Errorf("%w: no best move scripted", engine.ErrEvaluationFailed)
	}
	next, san, err := pos.PlayUCI(uci)
	if err != nil {
		return engine.Move{}, err
	}
	return engine.Move{UCI: uci, SAN: san, Position: next}, nil
}

func (f *fakeEval) Evaluate(_ context.Context, pos *board.Position, _ int) (engine.Score, error) {
	f.evals++
	f.evaluated[pos.FEN()]++
	if err, ok := f.fail[pos.FEN()]; ok {
		return engine.Score{}, err
	}
	return f.scores[pos.FEN()], nil
}

// stubSelector approves a fixed reply per FEN, or nothing.
type stubSelector struct {
	replies map[string]string
	err     error
	calls   int
}

func (s *stubSelector) SelectReply(_ context.Context, pos *board.Position, _ *explorer.PositionStats) (Selection, error) {
	s.calls++
	if s.err != nil {
		return Selection{}, s.err
	}
	san, ok := s.replies[pos.FEN()]
	if !ok {
		if def, ok := s.replies["*"]; ok {
			san = def
		} else {
			return Selection{}, nil
		}
	}
	next, err := pos.Play(san)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Approved: true, Move: next.LastMove(), Position: next}, nil
}

func position(t *testing.T, movetext string) *board.Position {
	t.Helper()
	if movetext == "" {
		return board.Start()
	}
	pos, err := board.ReplayMovetext(movetext)
	if err != nil {
		t.Fatalf("ReplayMovetext(%q): %v", movetext, err)
	}
	return pos
}

func fenAfter(t *testing.T, movetext string) string {
	t.Helper()
	return position(t, movetext).FEN()
}

// move builds a MoveStat with its derived fields against a position total.
func move(san, uci string, white, draws, black, positionTotal int64) explorer.MoveStat {
	total := white + draws + black
	m := explorer.MoveStat{SAN: san, UCI: uci, White: white, Draws: draws, Black: black, Total: total}
	if positionTotal > 0 {
		m.PlayRate = float64(total) / float64(positionTotal)
	}
	if total > 0 {
		m.WhiteRate = float64(white) / float64(total)
		m.BlackRate = float64(black) / float64(total)
		m.DrawRate = float64(draws) / float64(total)
	}
	return m
}

func positionStats(white, draws, black int64, moves ...explorer.MoveStat) *explorer.PositionStats {
	return &explorer.PositionStats{
		White: white,
		Draws: draws,
		Black: black,
		Total: white + draws + black,
		Moves: moves,
	}
}
