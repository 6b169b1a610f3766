package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrParseOutcome = errors.New("invalid outcome")

// Outcome is the result of a finished game. The integer values are the
// codes stored in games.outcome; 0 is never persisted.
type Outcome int

const (
	OutcomeNone Outcome = iota
	WhiteWins
	BlackWins
	Draw
)

func (o Outcome) Valid() bool {
	return o >= WhiteWins && o <= Draw
}

func (o Outcome) String() string {
	switch o {
	case WhiteWins:
		return "1-0"
	case BlackWins:
		return "0-1"
	case Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// ParseResult decodes a PGN Result header value. "*" and anything else
// that is not a finished result fails.
func ParseResult(s string) (Outcome, error) {
	switch s {
	case "1-0":
		return WhiteWins, nil
	case "0-1":
		return BlackWins, nil
	case "1/2-1/2":
		return Draw, nil
	}
	return OutcomeNone, fmt.Errorf("%w: %q", ErrParseOutcome, s)
}

// ParseOutcome accepts a PGN result, a stored code or a word such as
// "white", "black" or "draw".
func ParseOutcome(s string) (Outcome, error) {
	if o, err := ParseResult(s); err == nil {
		return o, nil
	}
	switch strings.ToLower(s) {
	case "1", "white":
		return WhiteWins, nil
	case "2", "black":
		return BlackWins, nil
	case "3", "draw":
		return Draw, nil
	}
	return OutcomeNone, fmt.Errorf("%w: %q", ErrParseOutcome, s)
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
