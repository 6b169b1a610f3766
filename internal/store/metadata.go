package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/freeeve/pgndb/internal/model"
)

const titleKey = "title"

// Title returns the database title.
func (s *Store) Title(ctx context.Context) (string, error) {
	query, args, err := s.sb.Select("value").From("metadata").Where(sq.Eq{"key": titleKey}).ToSql()
	if err != nil {
		return "", fmt.Errorf("build title query: %w", err)
	}
	var title string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&title); err != nil {
		return "", dbErr(err)
	}
	return title, nil
}

// SetTitle renames the database.
func (s *Store) SetTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalidf("empty title")
	}
	return s.wrapTx(ctx, func(tx *sql.Tx) error {
		query, args, err := s.sb.
			Insert("metadata").
			Columns("key", "value").
			Values(titleKey, title).
			Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
			ToSql()
		if err != nil {
			return fmt.Errorf("build set title: %w", err)
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
}

// GameCount returns the number of stored games.
func (s *Store) GameCount(ctx context.Context) (int64, error) {
	return s.getCount(ctx, s.sb.Select("COUNT(*)").From("games"))
}

// PlayerCount returns the number of stored players.
func (s *Store) PlayerCount(ctx context.Context) (int64, error) {
	return s.getCount(ctx, s.sb.Select("COUNT(*)").From("players"))
}

// Info summarizes the open database.
func (s *Store) Info(ctx context.Context) (model.DatabaseInfo, error) {
	var info model.DatabaseInfo

	title, err := s.Title(ctx)
	if err != nil {
		return info, err
	}
	players, err := s.PlayerCount(ctx)
	if err != nil {
		return info, err
	}
	games, err := s.GameCount(ctx)
	if err != nil {
		return info, err
	}

	info.Title = title
	info.Description = filepath.Base(s.path)
	info.PlayerCount = players
	info.GameCount = games
	if fi, err := os.Stat(s.path); err == nil {
		info.StorageSize = fi.Size()
	}
	return info, nil
}

// Info opens the database at path and summarizes it.
func Info(ctx context.Context, path string, log zerolog.Logger) (model.DatabaseInfo, error) {
	s, err := Open(ctx, path, log)
	if err != nil {
		return model.DatabaseInfo{}, err
	}
	defer s.Close()
	return s.Info(ctx)
}
