// Package config reads pgndb settings from an optional pgndb.yml, PGNDB_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/freeeve/pgndb/internal/ingest"
)

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type IngestConfig struct {
	WatchDir     string        `mapstructure:"watch_dir"`
	ProcessedDir string        `mapstructure:"processed_dir"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Workers      int           `mapstructure:"workers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type Config struct {
	DataDir   string       `mapstructure:"data_dir"`
	BatchSize int          `mapstructure:"batch_size"`
	RatingMin int          `mapstructure:"rating_min"`
	MaxGames  int64        `mapstructure:"max_games"`
	EcoDir    string       `mapstructure:"eco_dir"`
	HTTP      HTTPConfig   `mapstructure:"http"`
	Ingest    IngestConfig `mapstructure:"ingest"`
	Log       LogConfig    `mapstructure:"log"`
}

// DBDir is the directory holding the game databases.
func (c Config) DBDir() string {
	return filepath.Join(c.DataDir, "db")
}

// IngestConfig returns the import settings with log attached.
func (c Config) IngestConfig(log zerolog.Logger) ingest.Config {
	return ingest.Config{
		DataDir:      c.DataDir,
		BatchSize:    c.BatchSize,
		RatingMin:    c.RatingMin,
		MaxGames:     c.MaxGames,
		WatchDir:     c.Ingest.WatchDir,
		ProcessedDir: c.Ingest.ProcessedDir,
		PollInterval: c.Ingest.PollInterval,
		Workers:      c.Ingest.Workers,
		Logger:       log,
	}
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "~/.pgndb")
	v.SetDefault("batch_size", ingest.DefaultBatchSize)
	v.SetDefault("rating_min", 0)
	v.SetDefault("max_games", 0)
	v.SetDefault("eco_dir", "")

	v.SetDefault("http.addr", ":8007")

	v.SetDefault("ingest.watch_dir", "")
	v.SetDefault("ingest.processed_dir", "")
	v.SetDefault("ingest.poll_interval", "10s")
	v.SetDefault("ingest.workers", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Read returns the merged configuration. cfgFile, when set, must exist;
// otherwise pgndb.yml is looked up in the home and working directories.
func Read(v *viper.Viper, cfgFile string) (Config, error) {
	var cfg Config

	home, err := homedir.Dir()
	if err != nil {
		return cfg, fmt.Errorf("find home dir: %w", err)
	}

	SetDefaults(v)
	v.AddConfigPath(home)
	v.AddConfigPath(".")
	v.SetConfigName("pgndb")
	v.SetEnvPrefix("pgndb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.DataDir, err = homedir.Expand(cfg.DataDir); err != nil {
		return cfg, fmt.Errorf("expand data_dir: %w", err)
	}
	if cfg.Ingest.WatchDir, err = homedir.Expand(cfg.Ingest.WatchDir); err != nil {
		return cfg, fmt.Errorf("expand ingest.watch_dir: %w", err)
	}
	if cfg.BatchSize < 1 {
		return cfg, fmt.Errorf("batch_size must be positive, got %d", cfg.BatchSize)
	}
	return cfg, nil
}
