package model

import "strings"

const (
	// UnknownPlayerID is stored in games.white/games.black when the source
	// record carried no name for that side. No players row has this id.
	UnknownPlayerID int64 = 0

	// UnknownDate is stored when neither Date nor UTCDate was present.
	UnknownDate = "????.??.??"

	// StartingFEN is normalized to an absent fen column.
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

	// MoveSeparator joins the mainline in games.moves. SAN tokens never
	// contain it.
	MoveSeparator = " "
)

// Side is one player slot of a parsed record.
type Side struct {
	Name   string // empty when the header was absent
	Rating *int
}

// Record is one game parsed from an archive, ready to persist.
type Record struct {
	White   Side
	Black   Side
	Speed   *Speed
	Date    string
	Site    *string
	FEN     *string
	Outcome Outcome
	Moves   []string
}

// Reset clears the record for the next game, keeping the move buffer.
func (r *Record) Reset() {
	moves := r.Moves[:0]
	*r = Record{Moves: moves}
}

// Detach returns a copy that owns its own move slice.
func (r *Record) Detach() Record {
	out := *r
	out.Moves = append([]string(nil), r.Moves...)
	return out
}

func (r *Record) MovesText() string {
	return strings.Join(r.Moves, MoveSeparator)
}

// Player is a row of the players table.
type Player struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Rating    *int   `json:"rating,omitempty"`
	GameCount int64  `json:"game_count"`
}

// Game is a row of the games table.
type Game struct {
	ID          int64   `json:"id"`
	White       int64   `json:"white"`
	Black       int64   `json:"black"`
	WhiteRating *int    `json:"white_rating,omitempty"`
	BlackRating *int    `json:"black_rating,omitempty"`
	Date        string  `json:"date"`
	Speed       *Speed  `json:"speed,omitempty"`
	Site        *string `json:"site,omitempty"`
	FEN         *string `json:"fen,omitempty"`
	Outcome     Outcome `json:"outcome"`
	Moves       string  `json:"moves"`
}

// MoveList splits the stored mainline back into SAN tokens.
func (g Game) MoveList() []string {
	if g.Moves == "" {
		return nil
	}
	return strings.Split(g.Moves, MoveSeparator)
}

// GameRow is a game joined with both of its players.
type GameRow struct {
	Game  Game   `json:"game"`
	White Player `json:"white"`
	Black Player `json:"black"`
}

// PlayerGameInfo tallies a player's results across both colors.
type PlayerGameInfo struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
	Draw int `json:"draw"`
}

// DatabaseInfo summarizes one database file.
type DatabaseInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PlayerCount int64  `json:"player_count"`
	GameCount   int64  `json:"game_count"`
	StorageSize int64  `json:"storage_size"`
}
