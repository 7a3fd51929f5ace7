// Package board replays movetext onto a chess position and renders moves in
// SAN and UCI notation on top of the pgn library.
package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// ErrIllegalMove is returned when a move cannot be parsed or applied.
var ErrIllegalMove = errors.New("illegal move")

// Color is the side to move or the side that owns a repertoire.
type Color int8

const (
	White Color = iota
	Black
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "White"
	}
	return "Black"
}

// Position is a board state together with the moves that produced it from
// the standard starting position. Positions are values: Play returns a new
// Position and never mutates the receiver.
type Position struct {
	moves []string
	state *pgn.GameState
	// halfmove clock and fullmove number, which the packed state drops
	halfmove int
	fullmove int
}

// Start returns the standard starting position.
func Start() *Position {
	return &Position{state: pgn.NewStartingPosition(), fullmove: 1}
}

// Replay plays the SAN moves from the starting position.
func Replay(moves []string) (*Position, error) {
	pos := Start()
	for i, san := range moves {
		next, err := pos.Play(san)
		if err != nil {
			return nil, fmt.Errorf("ply %d: %w", i+1, err)
		}
		pos = next
	}
	return pos, nil
}

// ReplayMovetext parses movetext like "1. e4 e5 2. Nf3" and replays it.
func ReplayMovetext(text string) (*Position, error) {
	moves, err := ParseMovetext(text)
	if err != nil {
		return nil, err
	}
	return Replay(moves)
}

// Play applies a SAN move and returns the resulting position.
func (p *Position) Play(san string) (*Position, error) {
	token := cleanSAN(san)
	if token == "" {
		return nil, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	next, err := p.clone()
	if err != nil {
		return nil, err
	}
	mv, err := pgn.ParseSAN(next.state, strings.TrimRight(token, "+#"))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrIllegalMove, token, err)
	}
	next.tick(p, mv)
	if err := pgn.ApplyMove(next.state, mv); err != nil {
		return nil, fmt.Errorf("%w: apply %q: %v", ErrIllegalMove, token, err)
	}
	next.moves = append(next.moves, token)
	return next, nil
}

// PlayUCI applies a move given in UCI notation and returns the resulting
// position along with the move's SAN. Both castling spellings are accepted.
func (p *Position) PlayUCI(uci string) (*Position, string, error) {
	mv, ok := p.findUCI(uci)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q not legal in %s", ErrIllegalMove, uci, p.FEN())
	}
	san := moveToSAN(p.state, mv)
	next, err := p.clone()
	if err != nil {
		return nil, "", err
	}
	next.tick(p, mv)
	if err := pgn.ApplyMove(next.state, mv); err != nil {
		return nil, "", fmt.Errorf("%w: apply %q: %v", ErrIllegalMove, uci, err)
	}
	next.moves = append(next.moves, san)
	return next, san, nil
}

// PlayMove applies a decoded move, as produced by the pgn game reader, and
// returns the resulting position with the move's SAN.
func (p *Position) PlayMove(mv pgn.Mv) (*Position, string, error) {
	return p.PlayUCI(moveToUCI(mv))
}

// ReplayGame replays decoded game moves from the starting position.
func ReplayGame(moves []pgn.Mv) (*Position, error) {
	pos := Start()
	for i, mv := range moves {
		next, _, err := pos.PlayMove(mv)
		if err != nil {
			return nil, fmt.Errorf("ply %d: %w", i+1, err)
		}
		pos = next
	}
	return pos, nil
}

// UCI converts a SAN move legal in this position to UCI notation.
func (p *Position) UCI(san string) (string, error) {
	token := strings.TrimRight(cleanSAN(san), "+#")
	work, err := p.clone()
	if err != nil {
		return "", err
	}
	mv, err := pgn.ParseSAN(work.state, token)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrIllegalMove, san, err)
	}
	return p.NormalizeUCI(moveToUCI(mv)), nil
}

// NormalizeUCI rewrites king-captures-rook castling ("e1h1") into the
// king-destination form ("e1g1") when a king stands on the from square.
// Any other move is returned unchanged.
func (p *Position) NormalizeUCI(uci string) string {
	if len(uci) < 4 {
		return uci
	}
	piece := p.pieceOn(uci[0:2])
	if piece != 'K' && piece != 'k' {
		return uci
	}
	switch uci[:4] {
	case "e1h1":
		return "e1g1"
	case "e1a1":
		return "e1c1"
	case "e8h8":
		return "e8g8"
	case "e8a8":
		return "e8c8"
	}
	return uci
}

// FEN returns the Forsyth-Edwards encoding of the position.
func (p *Position) FEN() string {
	fields := strings.Fields(p.state.ToFEN())
	if len(fields) < 4 {
		return p.state.ToFEN()
	}
	fields = append(fields[:4], strconv.Itoa(p.halfmove), strconv.Itoa(p.fullmove))
	return strings.Join(fields, " ")
}

// tick sets the move counters for mv played from prev: the halfmove clock
// resets on pawn moves and captures, the fullmove number grows after Black.
func (p *Position) tick(prev *Position, mv pgn.Mv) {
	uci := moveToUCI(mv)
	mover := prev.pieceOn(uci[0:2])
	target := prev.pieceOn(uci[2:4])
	capture := target != 0 && isUpper(target) != isUpper(mover)
	if mover == 'P' || mover == 'p' || capture {
		p.halfmove = 0
	} else {
		p.halfmove = prev.halfmove + 1
	}
	p.fullmove = prev.fullmove
	if prev.SideToMove() == Black {
		p.fullmove++
	}
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

// SideToMove reports whose turn it is.
func (p *Position) SideToMove() Color {
	fields := strings.Fields(p.state.ToFEN())
	if len(fields) > 1 && fields[1] == "b" {
		return Black
	}
	return White
}

// Moves returns a copy of the SAN moves played from the starting position.
func (p *Position) Moves() []string {
	out := make([]string, len(p.moves))
	copy(out, p.moves)
	return out
}

// Ply is the number of half-moves played.
func (p *Position) Ply() int {
	return len(p.moves)
}

// LastMove returns the last SAN move, or "" at the starting position.
func (p *Position) LastMove() string {
	if len(p.moves) == 0 {
		return ""
	}
	return p.moves[len(p.moves)-1]
}

// Parent replays every move but the last one.
func (p *Position) Parent() (*Position, error) {
	if len(p.moves) == 0 {
		return nil, fmt.Errorf("starting position has no parent")
	}
	return Replay(p.moves[:len(p.moves)-1])
}

// LegalMoves returns the number of legal moves for the side to move.
func (p *Position) LegalMoves() int {
	return len(pgn.GenerateLegalMoves(p.state))
}

// IsCheckmate reports whether the side to move has been mated.
func (p *Position) IsCheckmate() bool {
	return p.state.IsInCheck() && p.LegalMoves() == 0
}

// Movetext formats the played moves as PGN movetext.
func (p *Position) Movetext() string {
	return FormatMovetext(p.moves)
}

func (p *Position) clone() (*Position, error) {
	state := p.state.Pack().Unpack()
	if state == nil {
		return nil, fmt.Errorf("unpack position %s", p.state.ToFEN())
	}
	moves := make([]string, len(p.moves), len(p.moves)+1)
	copy(moves, p.moves)
	return &Position{moves: moves, state: state, halfmove: p.halfmove, fullmove: p.fullmove}, nil
}

func (p *Position) findUCI(uci string) (pgn.Mv, bool) {
	want := p.NormalizeUCI(strings.ToLower(strings.TrimSpace(uci)))
	for _, mv := range pgn.GenerateLegalMoves(p.state) {
		if p.NormalizeUCI(moveToUCI(mv)) == want {
			return mv, true
		}
	}
	return pgn.Mv{}, false
}

// pieceOn reads the piece letter on a named square from the FEN placement
// field, or 0 for an empty or malformed square.
func (p *Position) pieceOn(square string) byte {
	sq, ok := squareIndex(square)
	if !ok {
		return 0
	}
	placement := strings.Fields(p.state.ToFEN())
	if len(placement) == 0 {
		return 0
	}
	rank, file := 7, 0
	for i := 0; i < len(placement[0]); i++ {
		c := placement[0][i]
		switch {
		case c == '/':
			rank--
			file = 0
		case c >= '1' && c <= '8':
			file += int(c - '0')
		default:
			if rank*8+file == sq {
				return c
			}
			file++
		}
	}
	return 0
}

// cleanSAN strips annotation glyphs such as "!?" and a trailing "e.p.".
func cleanSAN(san string) string {
	s := strings.TrimSpace(san)
	s = strings.TrimSuffix(s, "e.p.")
	return strings.TrimRight(s, "!?")
}
