// Package book runs the repertoire builder over a list of starting lines,
// one chapter per line.
package book

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/repertoire/internal/board"
)

// ErrNoBooks is returned when there are no starting lines to build from.
var ErrNoBooks = errors.New("no books configured")

// Book is a named starting line.
type Book struct {
	Name string `mapstructure:"name" json:"name"`
	PGN  string `mapstructure:"pgn" json:"pgn"`
}

// LoadBooks reads starting lines from a PGN file, one book per game. The
// book is named by the Event tag. Compressed .pgn.zst files are supported.
func LoadBooks(path string) ([]Book, error) {
	parser := pgn.Games(path)

	var books []Book
	for game := range parser.Games {
		n := len(books) + 1
		pos, err := board.ReplayGame(game.Moves)
		if err != nil {
			parser.Stop()
			return nil, fmt.Errorf("%s game %d: %w", path, n, err)
		}
		name := strings.TrimSpace(game.Tags["Event"])
		if name == "" || name == "?" {
			name = fmt.Sprintf("Book %d", n)
		}
		books = append(books, Book{Name: name, PGN: pos.Movetext()})
	}
	if err := parser.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: %s has no games", ErrNoBooks, path)
	}
	return books, nil
}
