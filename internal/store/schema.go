package store

// Schema creates the three tables of a game database. Column names and the
// integer encodings of games.speed and games.outcome are a stable file
// format read by other tools.
const Schema = `
CREATE TABLE IF NOT EXISTS players (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	rating INTEGER,
	game_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY,
	white INTEGER NOT NULL,
	black INTEGER NOT NULL,
	white_rating INTEGER,
	black_rating INTEGER,
	date TEXT NOT NULL,
	speed INTEGER,
	site TEXT,
	fen TEXT,
	outcome INTEGER NOT NULL CHECK(outcome IN (1, 2, 3)),
	moves TEXT NOT NULL,
	FOREIGN KEY(white) REFERENCES players(id),
	FOREIGN KEY(black) REFERENCES players(id)
);

CREATE INDEX IF NOT EXISTS idx_games_white ON games(white);
CREATE INDEX IF NOT EXISTS idx_games_black ON games(black);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT NOT NULL PRIMARY KEY,
	value TEXT NOT NULL
);

INSERT OR IGNORE INTO metadata (key, value) VALUES ('title', 'Untitled');
`

// bulkPragmas trade crash durability for import speed. The rollback journal
// stays in memory so a failed batch still rolls back as a unit.
var bulkPragmas = []string{
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA locking_mode = EXCLUSIVE",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -64000",
}

var readPragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA temp_store = MEMORY",
}
