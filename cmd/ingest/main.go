// Command ingest converts a PGN archive (.pgn, .pgn.zst, .pgn.gz, .pgn.bz2)
// into a SQLite game database under <data-dir>/db.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/freeeve/pgndb/internal/config"
	"github.com/freeeve/pgndb/internal/ingest"
	"github.com/freeeve/pgndb/internal/logx"
)

var cfgFile string

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"data-dir":   "data_dir",
	"batch-size": "batch_size",
	"rating-min": "rating_min",
	"max-games":  "max_games",
	"log-level":  "log.level",
	"log-json":   "log.json",
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ingest <archive>",
		Short:        "Convert a PGN archive into a game database",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/pgndb.yml)")
	cmd.Flags().String("data-dir", "", "data directory (databases go to <data-dir>/db)")
	cmd.Flags().Int("batch-size", ingest.DefaultBatchSize, "games per transaction")
	cmd.Flags().Int("rating-min", 0, "skip games with either rating below this (0 = off)")
	cmd.Flags().Int64("max-games", 0, "stop after this many games (0 = unlimited)")
	cmd.Flags().String("log-level", "info", "log level")
	cmd.Flags().Bool("log-json", false, "log as JSON")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	v := viper.New()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info().
		Str("pgn", args[0]).
		Str("data_dir", cfg.DataDir).
		Int("batch_size", cfg.BatchSize).
		Int("rating_min", cfg.RatingMin).
		Msg("starting ingest")

	stats, err := ingest.ImportFile(ctx, cfg.IngestConfig(logger), args[0])
	if err != nil {
		logger.Error().Err(err).
			Int64("games", stats.Games).
			Int64("batches", stats.Batches).
			Msg("ingest failed")
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s games, %s skipped in %s\n",
		stats.Path,
		humanize.Comma(stats.Games),
		humanize.Comma(stats.Skipped),
		stats.Elapsed.Round(time.Millisecond))
	return nil
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
