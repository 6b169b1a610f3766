// Command api serves the game databases over HTTP and runs background
// imports, from POST /v1/imports and from an optional watch folder.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/freeeve/pgndb/internal/config"
	"github.com/freeeve/pgndb/internal/eco"
	"github.com/freeeve/pgndb/internal/httpapi"
	"github.com/freeeve/pgndb/internal/ingest"
	"github.com/freeeve/pgndb/internal/logx"
)

var cfgFile string

var flagKeys = map[string]string{
	"addr":          "http.addr",
	"data-dir":      "data_dir",
	"batch-size":    "batch_size",
	"rating-min":    "rating_min",
	"eco-dir":       "eco_dir",
	"ingest-dir":    "ingest.watch_dir",
	"processed-dir": "ingest.processed_dir",
	"poll-interval": "ingest.poll_interval",
	"workers":       "ingest.workers",
	"log-level":     "log.level",
	"log-json":      "log.json",
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "api",
		Short:        "Serve game databases over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (default is $HOME/pgndb.yml)")
	f.String("addr", ":8007", "listen address")
	f.String("data-dir", "", "data directory (databases in <data-dir>/db)")
	f.Int("batch-size", ingest.DefaultBatchSize, "games per transaction for imports")
	f.Int("rating-min", 0, "skip imported games with either rating below this (0 = off)")
	f.String("eco-dir", "", "directory containing ECO .tsv files")
	f.String("ingest-dir", "", "directory to watch for PGN files (empty = disabled)")
	f.String("processed-dir", "", "directory for imported files (default <ingest-dir>/processed)")
	f.Duration("poll-interval", 10*time.Second, "watch directory poll interval")
	f.Int("workers", 1, "files imported in parallel by the watcher")
	f.String("log-level", "info", "log level")
	f.Bool("log-json", false, "log as JSON")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	for name, key := range flagKeys {
		if fl := cmd.Flags().Lookup(name); fl.Changed {
			if err := v.BindPFlag(key, fl); err != nil {
				return err
			}
		}
	}
	cfg, err := config.Read(v, cfgFile)
	if err != nil {
		return err
	}

	logger, err := logx.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Info().Str("file", used).Msg("using config file")
	}

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load ECO opening database
	var ecoDB *eco.Database
	if cfg.EcoDir != "" {
		ecoDB = eco.NewDatabase()
		if err := ecoDB.LoadDir(cfg.EcoDir); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.EcoDir).Msg("failed to load ECO database")
			ecoDB = nil
		} else {
			logger.Info().Int("openings", ecoDB.Count()).Msg("ECO database loaded")
		}
	}

	ingestCfg := cfg.IngestConfig(logger.With().Str("component", "ingest").Logger())
	jobs := ingest.NewJobs(ingestCfg)

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Logger:      logger.With().Str("component", "http").Logger(),
			DBDir:       cfg.DBDir(),
			Jobs:        jobs,
			Eco:         ecoDB,
			BaseContext: ctx,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("db_dir", cfg.DBDir()).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api server")
			stop()
		}
	}()

	worker, err := ingest.NewWorker(ingestCfg)
	if err != nil {
		return err
	}
	if worker != nil {
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("ingest worker stopped")
			}
		}()
		logger.Info().
			Str("watch_dir", filepath.Clean(cfg.Ingest.WatchDir)).
			Int("workers", cfg.Ingest.Workers).
			Msg("started ingest worker")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	// Running imports see the cancelled context and stop between games.
	jobs.Wait()

	logger.Info().Msg("shutdown complete")
	return nil
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
