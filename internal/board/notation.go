package board

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// ErrEmptyMovetext is returned when movetext contains no moves.
var ErrEmptyMovetext = errors.New("movetext has no moves")

const (
	files = "abcdefgh"
	ranks = "12345678"

	flagEnPassant = 2
	flagCastle    = 4
)

var (
	commentRegex    = regexp.MustCompile(`\{[^}]*\}|;[^\n]*`)
	variationRegex  = regexp.MustCompile(`\([^()]*\)`)
	tagRegex        = regexp.MustCompile(`(?m)^\s*\[[^\]]*\]\s*$`)
	nagRegex        = regexp.MustCompile(`\$\d+`)
	moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)
)

// ParseMovetext splits PGN movetext into SAN tokens, dropping tag pairs,
// comments, variations, NAGs, move numbers and the game result.
func ParseMovetext(text string) ([]string, error) {
	cleaned := tagRegex.ReplaceAllString(text, " ")
	cleaned = commentRegex.ReplaceAllString(cleaned, " ")
	for variationRegex.MatchString(cleaned) {
		cleaned = variationRegex.ReplaceAllString(cleaned, " ")
	}
	cleaned = nagRegex.ReplaceAllString(cleaned, " ")
	cleaned = moveNumberRegex.ReplaceAllString(cleaned, " ")

	var moves []string
	for _, tok := range strings.Fields(cleaned) {
		switch tok {
		case "1-0", "0-1", "1/2-1/2", "*":
			continue
		}
		tok = cleanSAN(tok)
		if tok == "" {
			continue
		}
		moves = append(moves, tok)
	}
	if len(moves) == 0 {
		return nil, ErrEmptyMovetext
	}
	return moves, nil
}

// FormatMovetext renders SAN moves played from the starting position as
// movetext, with the move number before White's moves only.
func FormatMovetext(moves []string) string {
	var sb strings.Builder
	for i, san := range moves {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i%2 == 0 {
			sb.WriteString(strconv.Itoa(i/2 + 1))
			sb.WriteString(". ")
		}
		sb.WriteString(san)
	}
	return sb.String()
}

// Owner returns the side a starting sequence belongs to: an odd number of
// plies means the last move was White's, so the repertoire is White's.
func Owner(plies int) Color {
	if plies%2 == 1 {
		return White
	}
	return Black
}

func squareIndex(name string) (int, bool) {
	if len(name) != 2 {
		return 0, false
	}
	file := strings.IndexByte(files, name[0])
	rank := strings.IndexByte(ranks, name[1])
	if file < 0 || rank < 0 {
		return 0, false
	}
	return rank*8 + file, true
}

func squareName(sq int) string {
	return string(files[sq%8]) + string(ranks[sq/8])
}

// moveToUCI converts a pgn.Mv to UCI notation (e.g., "e2e4", "e7e8q").
func moveToUCI(mv pgn.Mv) string {
	uci := squareName(int(mv.From)) + squareName(int(mv.To))
	switch mv.Promo {
	case pgn.PromoQueen:
		uci += "q"
	case pgn.PromoRook:
		uci += "r"
	case pgn.PromoBishop:
		uci += "b"
	case pgn.PromoKnight:
		uci += "n"
	}
	return uci
}

// moveToSAN renders mv in standard algebraic notation for pos, including
// disambiguation and the check or mate suffix.
func moveToSAN(pos *pgn.GameState, mv pgn.Mv) string {
	from, to := int(mv.From), int(mv.To)
	piece := upper(byte(pos.PieceAt(mv.From)))

	var san string
	if mv.Flags == flagCastle || (piece == 'K' && absInt(from%8-to%8) > 1) {
		san = "O-O-O"
		if to%8 > from%8 {
			san = "O-O"
		}
		return san + checkSuffix(pos, mv)
	}

	isPawn := piece == 'P'
	isCapture := pos.PieceAt(mv.To) != 0 || (isPawn && (mv.Flags == flagEnPassant || from%8 != to%8))

	if isPawn {
		if isCapture {
			san = string(files[from%8]) + "x"
		}
		san += squareName(to)
		switch mv.Promo {
		case pgn.PromoQueen:
			san += "=Q"
		case pgn.PromoRook:
			san += "=R"
		case pgn.PromoBishop:
			san += "=B"
		case pgn.PromoKnight:
			san += "=N"
		}
		return san + checkSuffix(pos, mv)
	}

	san = string(piece) + disambiguation(pos, mv, piece)
	if isCapture {
		san += "x"
	}
	san += squareName(to)
	return san + checkSuffix(pos, mv)
}

// disambiguation returns the file, rank, or square needed to tell mv apart
// from other pieces of the same kind that can reach the same square.
func disambiguation(pos *pgn.GameState, mv pgn.Mv, piece byte) string {
	from := int(mv.From)
	rivals, sameFile, sameRank := 0, false, false
	for _, other := range pgn.GenerateLegalMoves(pos) {
		if other.To != mv.To || other.From == mv.From {
			continue
		}
		if upper(byte(pos.PieceAt(other.From))) != piece {
			continue
		}
		rivals++
		of := int(other.From)
		if of%8 == from%8 {
			sameFile = true
		}
		if of/8 == from/8 {
			sameRank = true
		}
	}
	switch {
	case rivals == 0:
		return ""
	case !sameFile:
		return string(files[from%8])
	case !sameRank:
		return string(ranks[from/8])
	default:
		return squareName(from)
	}
}

func checkSuffix(pos *pgn.GameState, mv pgn.Mv) string {
	after := pos.Pack().Unpack()
	if after == nil {
		return ""
	}
	if err := pgn.ApplyMove(after, mv); err != nil {
		return ""
	}
	if !after.IsInCheck() {
		return ""
	}
	if len(pgn.GenerateLegalMoves(after)) == 0 {
		return "#"
	}
	return "+"
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 32
	}
	return c
}
