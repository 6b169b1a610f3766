// Package eco provides ECO (Encyclopedia of Chess Openings) lookup.
package eco

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/pgndb/internal/board"
)

// ClassifyPlies is how deep Classify looks into a game.
const ClassifyPlies = 40

// Opening represents an ECO opening classification.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
	Ply  int    `json:"ply,omitempty"`
}

// Database holds ECO opening data indexed by position.
type Database struct {
	byPosition map[pgn.PackedPosition]Opening
	count      int
}

// NewDatabase creates an empty ECO database.
func NewDatabase() *Database {
	return &Database{
		byPosition: make(map[pgn.PackedPosition]Opening),
	}
}

// moveNumberRegex matches move numbers like "1." or "12..."
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

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

// LoadFile loads a single TSV file with eco, name and pgn columns.
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

		pos := pgn.NewStartingPosition()
		if err := applyMoves(pos, parts[2]); err != nil {
			// Skip invalid lines silently
			continue
		}

		db.byPosition[pos.Pack()] = Opening{ECO: parts[0], Name: parts[1]}
		db.count++
	}

	return scanner.Err()
}

// applyMoves plays a movetext line like "1. e4 e5 2. Nf3 Nc6".
func applyMoves(pos *pgn.GameState, pgnMoves string) error {
	cleaned := moveNumberRegex.ReplaceAllString(pgnMoves, "")
	for _, san := range strings.Fields(cleaned) {
		if san[0] == '$' || san[0] == '{' {
			continue
		}
		if _, err := board.Play(pos, san); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the ECO opening for a position, or nil if not found.
func (db *Database) Lookup(pos pgn.PackedPosition) *Opening {
	if o, ok := db.byPosition[pos]; ok {
		return &o
	}
	return nil
}

// LookupGameState returns the ECO opening for a GameState.
func (db *Database) LookupGameState(gs *pgn.GameState) *Opening {
	return db.Lookup(gs.Pack())
}

// Classify replays the first ClassifyPlies moves of a game from fen (empty
// for the standard start) and returns the deepest opening reached, or nil.
func (db *Database) Classify(fen string, moves []string) *Opening {
	if db == nil || db.count == 0 {
		return nil
	}
	pos, err := board.Position(fen)
	if err != nil {
		return nil
	}

	var found *Opening
	for i, san := range moves {
		if i >= ClassifyPlies {
			break
		}
		if _, err := board.Play(pos, san); err != nil {
			break
		}
		if o := db.LookupGameState(pos); o != nil {
			o.Ply = i + 1
			found = o
		}
	}
	return found
}

// Count returns the number of openings loaded.
func (db *Database) Count() int {
	return db.count
}
