package store

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for malformed filter, sort or paging input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnavailable is returned when the database file cannot be opened.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned on successful queries which match no row.
	ErrNotFound = errors.New("not found")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// dbErr maps driver errors onto the package errors.
func dbErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
