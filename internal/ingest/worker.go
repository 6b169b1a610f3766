package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/pgndb/internal/codec"
)

// Worker watches a folder and imports every PGN archive dropped into it,
// each into its own database.
type Worker struct {
	cfg Config
	log zerolog.Logger
}

// NewWorker creates a new ingest worker. It returns nil when no watch
// directory is configured.
func NewWorker(cfg Config) (*Worker, error) {
	if cfg.WatchDir == "" {
		return nil, nil // Disabled
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.WatchDir, "processed")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	// Ensure directories exist
	if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ProcessedDir, 0755); err != nil {
		return nil, err
	}

	return &Worker{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "ingest-worker").Logger(),
	}, nil
}

// Run polls the watch directory until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Str("watch_dir", w.cfg.WatchDir).
		Str("processed_dir", w.cfg.ProcessedDir).
		Int("workers", w.cfg.Workers).
		Msg("ingest worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessNewFiles(ctx); err != nil {
				w.log.Warn().Err(err).Msg("process files failed")
			}
		}
	}
}

// ProcessNewFiles imports the archives currently in the watch directory,
// up to cfg.Workers at a time, and moves each imported file to the
// processed directory. It returns the number of files imported.
func (w *Worker) ProcessNewFiles(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(w.cfg.WatchDir)
	if err != nil {
		return 0, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if codec.IsArchive(e.Name()) {
			names = append(names, e.Name())
		}
	}

	// Sort by name to process in order
	sort.Strings(names)

	// Archives sharing a stem target the same database. Only the first is
	// imported per poll; the rest stay in place for a later poll.
	var files []string
	targets := make(map[string]string, len(names))
	for _, name := range names {
		stem := codec.Stem(name)
		if first, ok := targets[stem]; ok {
			w.log.Warn().
				Str("file", name).
				Str("conflicts_with", first).
				Msg("database already targeted in this poll, deferring")
			continue
		}
		targets[stem] = name
		files = append(files, name)
	}
	if len(files) == 0 {
		return 0, nil
	}
	w.log.Info().Int("files", len(files)).Int("workers", w.cfg.Workers).Msg("found PGN files to process")

	type fileResult struct {
		name  string
		stats Stats
		err   error
	}

	fileChan := make(chan string, len(files))
	resultChan := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for name := range fileChan {
				if err := ctx.Err(); err != nil {
					resultChan <- fileResult{name: name, err: err}
					continue
				}
				cfg := w.cfg
				cfg.Logger = w.log.With().Int("worker", workerID).Logger()
				stats, err := ImportFile(ctx, cfg, filepath.Join(w.cfg.WatchDir, name))
				resultChan <- fileResult{name: name, stats: stats, err: err}
			}
		}(i)
	}

	for _, name := range files {
		fileChan <- name
	}
	close(fileChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var processed, failed int
	for result := range resultChan {
		if result.err != nil {
			w.log.Error().Err(result.err).Str("file", result.name).Msg("ingest failed")
			failed++
			continue
		}

		srcPath := filepath.Join(w.cfg.WatchDir, result.name)
		destPath := filepath.Join(w.cfg.ProcessedDir, result.name)
		if err := os.Rename(srcPath, destPath); err != nil {
			w.log.Warn().Err(err).Str("file", result.name).Msg("move to processed failed")
		} else {
			w.log.Info().Str("file", result.name).Str("db", result.stats.Path).Msg("moved to processed")
		}
		processed++
	}

	w.log.Info().Int("processed", processed).Int("failed", failed).Msg("batch of files complete")
	return processed, nil
}
