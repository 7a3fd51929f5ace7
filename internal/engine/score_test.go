package engine

import (
	"testing"

	"github.com/freeeve/repertoire/internal/board"
)

func TestFromEngine(t *testing.T) {
	tests := []struct {
		name   string
		raw    int
		mate   bool
		toMove board.Color
		want   Score
	}{
		{"white to move cp", 35, false, board.White, Centipawns(35)},
		{"black to move cp flips", 35, false, board.Black, Centipawns(-35)},
		{"white mates", 3, true, board.White, MateFor(board.White, 3)},
		{"black to move mating", 2, true, board.Black, MateFor(board.Black, 2)},
		{"black to move mated", -4, true, board.Black, MateFor(board.White, 4)},
		{"mate zero", 0, true, board.White, MateFor(board.Black, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fromEngine(tt.raw, tt.mate, tt.toMove); got != tt.want {
				t.Errorf("fromEngine(%d, %v, %v) = %+v, want %+v", tt.raw, tt.mate, tt.toMove, got, tt.want)
			}
		})
	}
}

func TestScoreValueOrdering(t *testing.T) {
	mateSoon := MateFor(board.White, 1).Value(board.White)
	mateLater := MateFor(board.White, 5).Value(board.White)
	bigCP := Centipawns(2500).Value(board.White)
	mated := MateFor(board.Black, 2).Value(board.White)

	if !(mateSoon > mateLater && mateLater > bigCP && bigCP > mated) {
		t.Errorf("ordering broken: %d %d %d %d", mateSoon, mateLater, bigCP, mated)
	}
	if got := Centipawns(80).Value(board.Black); got != -80 {
		t.Errorf("Value(Black) = %d, want -80", got)
	}
	if got := MateFor(board.Black, 3).Value(board.Black); got != MateValue-3 {
		t.Errorf("black mate for black = %d", got)
	}
}

func TestScoreMatesFor(t *testing.T) {
	s := MateFor(board.Black, -2)
	if s.MateIn != 2 {
		t.Errorf("MateIn = %d, want 2", s.MateIn)
	}
	if !s.MatesFor(board.Black) || s.MatesFor(board.White) {
		t.Error("MatesFor mismatch")
	}
	if Centipawns(900).MatesFor(board.White) {
		t.Error("centipawn score reported as mate")
	}
	if s.String() != "#-2" || Centipawns(15).String() != "+15" {
		t.Errorf("String = %q / %q", s.String(), Centipawns(15).String())
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without engine path")
	}
}
