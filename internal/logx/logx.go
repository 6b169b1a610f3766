package logx

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/pgndb/internal/config"
)

// NewLogger returns a zerolog logger writing to stderr, as aligned console
// lines or as JSON when cfg.JSON is set.
func NewLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	return New(os.Stderr, cfg)
}

// New is NewLogger with an explicit destination.
func New(w io.Writer, cfg config.LogConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	out := w
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
		zerolog.CallerMarshalFunc = shortCaller
	}

	return zerolog.New(out).Level(level).With().Timestamp().Caller().Logger(), nil
}

func shortCaller(_ uintptr, file string, line int) string {
	// Extract just the filename, not the full path
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	// Pad to 28 characters for alignment
	return fmt.Sprintf("%-28s", fmt.Sprintf("%s:%d", short, line))
}
