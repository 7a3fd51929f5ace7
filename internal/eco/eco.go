// Package eco provides ECO (Encyclopedia of Chess Openings) lookup.
package eco

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/freeeve/repertoire/internal/board"
)

// Opening represents an ECO opening classification.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// Database holds ECO opening data indexed by position.
type Database struct {
	byPosition map[string]Opening
	count      int
}

// NewDatabase creates an empty ECO database.
func NewDatabase() *Database {
	return &Database{
		byPosition: make(map[string]Opening),
	}
}

// LoadDir loads all .tsv files from a directory.
func (db *Database) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}

	for _, file := range files {
		if err := db.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile loads a single TSV file in the lichess chess-openings layout
// (eco, name, pgn).
func (db *Database) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if lineNum == 1 && strings.HasPrefix(line, "eco\t") {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}

		pos, err := board.ReplayMovetext(parts[2])
		if err != nil {
			// Skip invalid lines silently
			continue
		}

		db.byPosition[positionKey(pos.FEN())] = Opening{ECO: parts[0], Name: parts[1]}
		db.count++
	}

	return scanner.Err()
}

// Lookup returns the ECO opening for a FEN, or nil if not found. Move
// counters are ignored so transpositions match.
func (db *Database) Lookup(fen string) *Opening {
	if o, ok := db.byPosition[positionKey(fen)]; ok {
		return &o
	}
	return nil
}

// Classify replays moves from the starting position and returns the
// deepest named opening reached along the way, or nil when none is known
// or the moves do not replay.
func (db *Database) Classify(moves []string) *Opening {
	if db == nil || db.count == 0 {
		return nil
	}
	var found *Opening
	pos := board.Start()
	for _, san := range moves {
		next, err := pos.Play(san)
		if err != nil {
			break
		}
		pos = next
		if o := db.Lookup(pos.FEN()); o != nil {
			found = o
		}
	}
	return found
}

// Count returns the number of openings loaded.
func (db *Database) Count() int {
	return db.count
}

func positionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}
