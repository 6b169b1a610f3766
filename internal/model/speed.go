package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrParseTimeControl is returned for a TimeControl value that is neither
	// "-" nor "<base>+<increment>".
	ErrParseTimeControl = errors.New("invalid time control")
	ErrParseSpeed       = errors.New("invalid speed")
)

// Speed is the time control category of a game, ordered fastest to slowest.
// The integer values are persisted in games.speed and must not change.
type Speed int

const (
	UltraBullet Speed = iota
	Bullet
	Blitz
	Rapid
	Classical
	Correspondence
)

// estimatedMoves is the move count used to fold the increment into a
// single expected game duration.
const estimatedMoves = 40

var speedNames = [...]string{"UltraBullet", "Bullet", "Blitz", "Rapid", "Classical", "Correspondence"}

func (s Speed) Valid() bool {
	return s >= UltraBullet && s <= Correspondence
}

func (s Speed) String() string {
	if !s.Valid() {
		return "Speed(" + strconv.Itoa(int(s)) + ")"
	}
	return speedNames[s]
}

// SpeedFromClock buckets base seconds plus 40 increments.
func SpeedFromClock(base, increment uint64) Speed {
	total := base + estimatedMoves*increment
	switch {
	case total < 30:
		return UltraBullet
	case total < 180:
		return Bullet
	case total < 480:
		return Blitz
	case total < 1500:
		return Rapid
	case total < 21_600:
		return Classical
	default:
		return Correspondence
	}
}

// ParseTimeControl classifies a PGN TimeControl header value. "-" means no
// clock and maps to Correspondence.
func ParseTimeControl(tc string) (Speed, error) {
	if tc == "-" {
		return Correspondence, nil
	}
	baseStr, incStr, ok := strings.Cut(tc, "+")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrParseTimeControl, tc)
	}
	base, err := strconv.ParseUint(baseStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParseTimeControl, tc)
	}
	inc, err := strconv.ParseUint(incStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParseTimeControl, tc)
	}
	return SpeedFromClock(base, inc), nil
}

// ParseSpeed accepts a category name (case-insensitive) or its stored code.
func ParseSpeed(s string) (Speed, error) {
	for i, name := range speedNames {
		if strings.EqualFold(s, name) {
			return Speed(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Speed(n).Valid() {
		return Speed(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrParseSpeed, s)
}

func (s Speed) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrParseSpeed, int(s))
	}
	return []byte(speedNames[s]), nil
}

func (s *Speed) UnmarshalText(b []byte) error {
	v, err := ParseSpeed(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
