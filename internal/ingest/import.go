package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/freeeve/pgndb/internal/codec"
	"github.com/freeeve/pgndb/internal/pgnscan"
	"github.com/freeeve/pgndb/internal/store"
)

// Config configures imports and the folder worker.
type Config struct {
	DataDir      string         // Databases go to DataDir/db
	BatchSize    int            // Games per transaction, default 50
	RatingMin    int            // Skip games with either rating below this, 0 disables
	MaxGames     int64          // Stop after this many accepted games, 0 means all
	WatchDir     string         // Directory to watch for PGN files
	ProcessedDir string         // Directory to move processed files to
	PollInterval time.Duration  // How often to check for new files
	Workers      int            // Files imported in parallel
	Logger       zerolog.Logger // Logger
}

// Stats summarizes one import.
type Stats struct {
	Path    string        `json:"path"`
	Games   int64         `json:"games"`
	Skipped int64         `json:"skipped"`
	Batches int64         `json:"batches"`
	Elapsed time.Duration `json:"elapsed"`
}

const progressEvery = 10 * time.Second

// DatabasePath returns the database file an archive is imported into.
func DatabasePath(dataDir, src string) string {
	return filepath.Join(dataDir, "db", codec.Stem(src)+".sqlite")
}

// ImportFile converts the archive at src into a fresh database under
// cfg.DataDir, replacing any database previously built from it.
// Cancelling ctx stops between games; batches already written stay valid.
func ImportFile(ctx context.Context, cfg Config, src string) (Stats, error) {
	log := cfg.Logger.With().Str("file", filepath.Base(src)).Logger()
	stats := Stats{Path: DatabasePath(cfg.DataDir, src)}
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if _, err := os.Stat(src); err != nil {
		return stats, err
	}
	if err := store.Remove(stats.Path); err != nil {
		return stats, fmt.Errorf("remove old database: %w", err)
	}

	st, err := store.Create(ctx, stats.Path, log)
	if err != nil {
		return stats, err
	}
	defer st.Close()

	rc, err := codec.Open(src)
	if err != nil {
		return stats, err
	}
	defer rc.Close()

	log.Info().
		Str("db", stats.Path).
		Str("codec", codec.Detect(src).String()).
		Int("rating_min", cfg.RatingMin).
		Msg("starting file ingest")

	im := NewImporter(ctx, st, cfg.BatchSize, cfg.RatingMin, log)
	r := pgnscan.NewReader(rc)
	lastLog := time.Now()

	fill := func() Stats {
		stats.Games = im.Games()
		stats.Skipped = im.Skipped()
		stats.Batches = im.Batches()
		stats.Elapsed = time.Since(start)
		return stats
	}

	for {
		if err := ctx.Err(); err != nil {
			return fill(), err
		}
		if cfg.MaxGames > 0 && im.Games() >= cfg.MaxGames {
			log.Info().Int64("max_games", cfg.MaxGames).Msg("game limit reached")
			break
		}

		ok, err := r.ReadGame(im)
		if err != nil {
			return fill(), fmt.Errorf("game %d: %w", r.Games(), err)
		}
		if !ok {
			break
		}

		if time.Since(lastLog) > progressEvery {
			elapsed := time.Since(start)
			log.Info().
				Int64("games", im.Games()).
				Int64("skipped", im.Skipped()).
				Int64("batches", im.Batches()).
				Float64("games_per_sec", float64(im.Games())/elapsed.Seconds()).
				Msg("ingest progress")
			lastLog = time.Now()
		}
	}

	if err := im.Finish(); err != nil {
		return fill(), err
	}

	fill()
	ev := log.Info().
		Str("games", humanize.Comma(stats.Games)).
		Str("skipped", humanize.Comma(stats.Skipped)).
		Int64("batches", stats.Batches).
		Dur("elapsed", stats.Elapsed).
		Float64("games_per_sec", float64(stats.Games)/stats.Elapsed.Seconds())
	if fi, err := os.Stat(stats.Path); err == nil {
		ev = ev.Str("size", humanize.Bytes(uint64(fi.Size())))
	}
	ev.Msg("file ingest complete")

	return stats, nil
}
