// Package export writes finished chapters as annotated PGN.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/book"
	"github.com/freeeve/repertoire/internal/eco"
	"github.com/freeeve/repertoire/internal/repertoire"
)

// Printer renders terminal lines as PGN games. The opening database is
// optional; without it no ECO tags are written.
type Printer struct {
	openings *eco.Database
}

// NewPrinter creates a printer.
func NewPrinter(openings *eco.Database) *Printer {
	return &Printer{openings: openings}
}

// Chapter writes every line of ch, numbered from 1.
func (p *Printer) Chapter(w io.Writer, ch book.Chapter) error {
	for i, line := range ch.Lines {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := p.Line(w, ch.Book.Name, i+1, line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// Line writes one terminal line as a game with its tags, movetext and a
// comment holding the opponent play rates and the expected outcome.
func (p *Printer) Line(w io.Writer, bookName string, number int, line repertoire.TerminalLine) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Event %q]\n", fmt.Sprintf("%s Line %d", bookName, number))
	if o := p.openings.Classify(lineMoves(line)); o != nil {
		fmt.Fprintf(&sb, "[ECO %q]\n", o.ECO)
		fmt.Fprintf(&sb, "[Opening %q]\n", o.Name)
	}
	sb.WriteString("[Result \"*\"]\n\n")

	sb.WriteString(line.PGN)
	sb.WriteString("\n{Move play rates:")
	for _, s := range line.Path {
		fmt.Fprintf(&sb, "\n%s\t%s", percent(s.Probability), s.Move)
	}
	fmt.Fprintf(&sb, "\nLine cumulative play rate: %s", percent(line.Likelihood))
	fmt.Fprintf(&sb, "\nLine win rate: %s over %d games}", percent(line.WinRate), line.Games)
	sb.WriteString(" *\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func lineMoves(line repertoire.TerminalLine) []string {
	if len(line.Moves) > 0 {
		return line.Moves
	}
	moves, err := board.ParseMovetext(line.PGN)
	if err != nil {
		return nil
	}
	return moves
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
