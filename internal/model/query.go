package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrParseSort  = errors.New("invalid sort")
	ErrParseSides = errors.New("invalid sides")
	ErrParseRange = errors.New("invalid rating range")
)

// Sides fixes which colors player1 and player2 had.
type Sides int

const (
	// WhiteBlack means player1 had white and player2 had black.
	WhiteBlack Sides = iota
	BlackWhite
	AnySides
)

func (s Sides) String() string {
	switch s {
	case WhiteBlack:
		return "WhiteBlack"
	case BlackWhite:
		return "BlackWhite"
	case AnySides:
		return "Any"
	}
	return "Sides(" + strconv.Itoa(int(s)) + ")"
}

func ParseSides(s string) (Sides, error) {
	switch strings.ToLower(s) {
	case "whiteblack", "white":
		return WhiteBlack, nil
	case "blackwhite", "black":
		return BlackWhite, nil
	case "any":
		return AnySides, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrParseSides, s)
}

func (s Sides) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Sides) UnmarshalText(b []byte) error {
	v, err := ParseSides(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Sort selects the single descending sort key of a game query.
type Sort int

const (
	SortDate Sort = iota
	SortRating
	SortSpeed
	SortOutcome
)

var sortNames = [...]string{"date", "rating", "speed", "outcome"}

func (s Sort) String() string {
	if s < SortDate || s > SortOutcome {
		return "Sort(" + strconv.Itoa(int(s)) + ")"
	}
	return sortNames[s]
}

func ParseSort(s string) (Sort, error) {
	for i, name := range sortNames {
		if strings.EqualFold(s, name) {
			return Sort(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrParseSort, s)
}

func (s Sort) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Sort) UnmarshalText(b []byte) error {
	v, err := ParseSort(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RatingRange is an inclusive bound on a per-game rating.
type RatingRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ParseRatingRange parses "1500-2000".
func ParseRatingRange(s string) (RatingRange, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return RatingRange{}, fmt.Errorf("%w: %q", ErrParseRange, s)
	}
	minR, errMin := strconv.Atoi(strings.TrimSpace(lo))
	maxR, errMax := strconv.Atoi(strings.TrimSpace(hi))
	if errMin != nil || errMax != nil {
		return RatingRange{}, fmt.Errorf("%w: %q", ErrParseRange, s)
	}
	return RatingRange{Min: minR, Max: maxR}, nil
}

func (r RatingRange) String() string {
	return strconv.Itoa(r.Min) + "-" + strconv.Itoa(r.Max)
}

// GameQuery is a declarative read request over the games table. All
// filters are optional and combined with AND.
type GameQuery struct {
	SkipCount bool         `json:"skip_count"`
	Player1   string       `json:"player1,omitempty"`
	Player2   string       `json:"player2,omitempty"`
	Range1    *RatingRange `json:"range1,omitempty"`
	Range2    *RatingRange `json:"range2,omitempty"`
	Sides     *Sides       `json:"sides,omitempty"`
	Speed     *Speed       `json:"speed,omitempty"`
	Outcome   *Outcome     `json:"outcome,omitempty"`
	Limit     *int64       `json:"limit,omitempty"`
	Offset    *int64       `json:"offset,omitempty"`
	Sort      *Sort        `json:"sort,omitempty"`
}

// PlayerQuery lists players, optionally filtered by a name substring that
// ignores ASCII case.
type PlayerQuery struct {
	SkipCount bool   `json:"skip_count"`
	Name      string `json:"name,omitempty"`
	Limit     *int64 `json:"limit,omitempty"`
	Offset    *int64 `json:"offset,omitempty"`
}

// QueryResponse is a page of results plus the total match count when it
// was requested.
type QueryResponse[T any] struct {
	Data  T      `json:"data"`
	Count *int64 `json:"count"`
}
