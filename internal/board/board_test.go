package board

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseMovetext(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "1. e4 e5 2. Nf3", []string{"e4", "e5", "Nf3"}},
		{"no space after number", "1.e4 e5 2.Nf3 Nc6", []string{"e4", "e5", "Nf3", "Nc6"}},
		{"black continuation", "1. e4 e5 2. Nf3 2... Nc6", []string{"e4", "e5", "Nf3", "Nc6"}},
		{"comments and nags", "1. e4 {best by test} e5 $1 2. Nf3!? *", []string{"e4", "e5", "Nf3"}},
		{"variation", "1. e4 e5 (1... c5 2. Nf3) 2. Nf3", []string{"e4", "e5", "Nf3"}},
		{"tags", "[Event \"Test\"]\n[Site \"?\"]\n\n1. d4 d5 1/2-1/2", []string{"d4", "d5"}},
		{"check suffix kept", "1. e4 f6 2. Qh5+", []string{"e4", "f6", "Qh5+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMovetext(tt.in)
			if err != nil {
				t.Fatalf("ParseMovetext(%q): %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMovetext(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseMovetextEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "{just a comment}", "*"} {
		if _, err := ParseMovetext(in); !errors.Is(err, ErrEmptyMovetext) {
			t.Errorf("ParseMovetext(%q) err = %v, want ErrEmptyMovetext", in, err)
		}
	}
}

func TestFormatMovetext(t *testing.T) {
	tests := []struct {
		moves []string
		want  string
	}{
		{nil, ""},
		{[]string{"e4"}, "1. e4"},
		{[]string{"e4", "e5"}, "1. e4 e5"},
		{[]string{"e4", "e5", "Nf3", "Nc6", "Bb5"}, "1. e4 e5 2. Nf3 Nc6 3. Bb5"},
	}
	for _, tt := range tests {
		if got := FormatMovetext(tt.moves); got != tt.want {
			t.Errorf("FormatMovetext(%v) = %q, want %q", tt.moves, got, tt.want)
		}
	}
}

func TestOwner(t *testing.T) {
	if Owner(1) != White || Owner(3) != White {
		t.Error("odd ply counts should belong to White")
	}
	if Owner(0) != Black || Owner(2) != Black {
		t.Error("even ply counts should belong to Black")
	}
}

func TestReplayAndSideToMove(t *testing.T) {
	pos, err := ReplayMovetext("1. e4 e5 2. Nf3")
	if err != nil {
		t.Fatalf("ReplayMovetext: %v", err)
	}
	if pos.Ply() != 3 {
		t.Errorf("Ply = %d, want 3", pos.Ply())
	}
	if pos.SideToMove() != Black {
		t.Errorf("SideToMove = %v, want Black", pos.SideToMove())
	}
	if pos.LastMove() != "Nf3" {
		t.Errorf("LastMove = %q, want Nf3", pos.LastMove())
	}
	if got := pos.Movetext(); got != "1. e4 e5 2. Nf3" {
		t.Errorf("Movetext = %q", got)
	}

	parent, err := pos.Parent()
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if parent.SideToMove() != White || parent.Ply() != 2 {
		t.Errorf("parent side=%v ply=%d, want White 2", parent.SideToMove(), parent.Ply())
	}
}

func TestPlayDoesNotMutate(t *testing.T) {
	pos, err := ReplayMovetext("1. e4")
	if err != nil {
		t.Fatalf("ReplayMovetext: %v", err)
	}
	before := pos.FEN()
	if _, err := pos.Play("e5"); err != nil {
		t.Fatalf("Play e5: %v", err)
	}
	if _, err := pos.Play("c5"); err != nil {
		t.Fatalf("Play c5 from the same parent: %v", err)
	}
	if pos.FEN() != before || pos.Ply() != 1 {
		t.Errorf("parent position changed after Play: %s", pos.FEN())
	}
}

func TestReplayIllegal(t *testing.T) {
	_, err := ReplayMovetext("1. e4 e4")
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	if _, err := Start().Parent(); err == nil {
		t.Error("starting position should have no parent")
	}
}

func TestCastlingNotations(t *testing.T) {
	pos, err := ReplayMovetext("1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5")
	if err != nil {
		t.Fatalf("ReplayMovetext: %v", err)
	}

	for _, uci := range []string{"e1g1", "e1h1"} {
		if got := pos.NormalizeUCI(uci); got != "e1g1" {
			t.Errorf("NormalizeUCI(%q) = %q, want e1g1", uci, got)
		}
		next, san, err := pos.PlayUCI(uci)
		if err != nil {
			t.Fatalf("PlayUCI(%q): %v", uci, err)
		}
		if san != "O-O" {
			t.Errorf("PlayUCI(%q) san = %q, want O-O", uci, san)
		}
		if next.SideToMove() != Black {
			t.Errorf("after %s side = %v, want Black", uci, next.SideToMove())
		}
	}

	got, err := pos.UCI("O-O")
	if err != nil {
		t.Fatalf("UCI(O-O): %v", err)
	}
	if got != "e1g1" {
		t.Errorf("UCI(O-O) = %q, want e1g1", got)
	}

	// A rook on h1 moving is not castling.
	rook, err := ReplayMovetext("1. h4 a5 2. Rh3")
	if err != nil {
		t.Fatalf("ReplayMovetext: %v", err)
	}
	if got := rook.NormalizeUCI("h3h1"); got != "h3h1" {
		t.Errorf("NormalizeUCI(h3h1) = %q, want unchanged", got)
	}
}

func TestPlayUCISAN(t *testing.T) {
	tests := []struct {
		name string
		pgn  string
		uci  string
		san  string
	}{
		{"pawn push", "", "e2e4", "e4"},
		{"knight", "", "g1f3", "Nf3"},
		{"pawn capture", "1. e4 d5", "e4d5", "exd5"},
		{"check", "1. e4 f6", "d1h5", "Qh5+"},
		{"mate", "1. f3 e5 2. g4", "d8h4", "Qh4#"},
		{"knight disambiguation", "1. Nc3 a6 2. e4 a5", "g1e2", "Nge2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := Start()
			if tt.pgn != "" {
				var err error
				pos, err = ReplayMovetext(tt.pgn)
				if err != nil {
					t.Fatalf("ReplayMovetext: %v", err)
				}
			}
			_, san, err := pos.PlayUCI(tt.uci)
			if err != nil {
				t.Fatalf("PlayUCI(%q): %v", tt.uci, err)
			}
			if san != tt.san {
				t.Errorf("PlayUCI(%q) san = %q, want %q", tt.uci, san, tt.san)
			}
		})
	}
}

func TestCheckmate(t *testing.T) {
	pos, err := ReplayMovetext("1. f3 e5 2. g4 Qh4#")
	if err != nil {
		t.Fatalf("ReplayMovetext: %v", err)
	}
	if !pos.IsCheckmate() {
		t.Error("fool's mate not detected")
	}
	if pos.LegalMoves() != 0 {
		t.Errorf("LegalMoves = %d, want 0", pos.LegalMoves())
	}

	pos, err = ReplayMovetext("1. e4 f6 2. Qh5+")
	if err != nil {
		t.Fatalf("ReplayMovetext: %v", err)
	}
	if pos.IsCheckmate() {
		t.Error("plain check reported as mate")
	}
}

func TestFENCounters(t *testing.T) {
	tests := []struct {
		pgn  string
		want string
	}{
		{"", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"},
		{"1. Nf3", "rnbqkbnr/pppppppp/8/8/8/5N2/PPPPPPPP/RNBQKB1R b KQkq - 1 1"},
		{"1. e4 e5 2. Nf3 Nc6 3. Bb5", "r1bqkbnr/pppp1ppp/2n5/1B2p3/4P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3"},
		{"1. e4 d5 2. exd5", "rnbqkbnr/ppp1pppp/8/3P4/8/8/PPPP1PPP/RNBQKBNR b KQkq - 0 2"},
		{"1. Nf3 Nf6 2. Ng1 Ng8 3. Nc3 Nc6 4. Nb1", "r1bqkbnr/pppppppp/2n5/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 7 4"},
	}
	for _, tt := range tests {
		pos := Start()
		if tt.pgn != "" {
			var err error
			if pos, err = ReplayMovetext(tt.pgn); err != nil {
				t.Fatalf("ReplayMovetext(%q): %v", tt.pgn, err)
			}
		}
		fields := strings.Fields(pos.FEN())
		want := strings.Fields(tt.want)
		if len(fields) != 6 || fields[4] != want[4] || fields[5] != want[5] || fields[1] != want[1] {
			t.Errorf("FEN after %q = %q, want counters of %q", tt.pgn, pos.FEN(), tt.want)
		}
	}
}

func TestFENCountersAfterUCIMove(t *testing.T) {
	pos, err := ReplayMovetext("1. e4 e5")
	if err != nil {
		t.Fatal(err)
	}
	next, _, err := pos.PlayUCI("g1f3")
	if err != nil {
		t.Fatal(err)
	}
	if f := strings.Fields(next.FEN()); f[4] != "1" || f[5] != "2" {
		t.Errorf("FEN = %q, want counters 1 2", next.FEN())
	}
}
