package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store is a handle on one game database file. A Store is owned by a
// single logical operation (one import, or one request) at a time.
type Store struct {
	db   *sql.DB
	path string
	sb   sq.StatementBuilderType
	log  zerolog.Logger
}

// Create opens path for bulk import, applies the import pragmas and
// creates the schema if it is missing. The file is created if needed.
func Create(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create database dir: %w", ErrUnavailable, err)
	}
	s, err := open(ctx, path, bulkPragmas, log)
	if err != nil {
		return nil, err
	}
	if err := s.InitDB(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens an existing database for reads and metadata updates.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnavailable, path)
	}
	return open(ctx, path, readPragmas, log)
}

func open(ctx context.Context, path string, pragmas []string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, path, err)
	}

	// Pragmas are per connection; a single connection keeps them in force
	// and serializes all access to the file.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrUnavailable, path, err)
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, p, err)
		}
	}

	return &Store{
		db:   db,
		path: path,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log:  log,
	}, nil
}

// InitDB creates the schema and the default title. It is idempotent.
func (s *Store) InitDB(ctx context.Context) error {
	return s.wrapTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, Schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	})
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// wrapTx runs fn in a transaction, committing on success.
func (s *Store) wrapTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			return errors.Join(err, errRollback)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Remove deletes a database file and its journal, if present.
func Remove(path string) error {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
