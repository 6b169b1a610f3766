package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	tests := map[string]Outcome{
		"1-0":     WhiteWins,
		"0-1":     BlackWins,
		"1/2-1/2": Draw,
	}
	for in, want := range tests {
		got, err := ParseResult(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, in, got.String())
	}

	for _, in := range []string{"*", "", "1-1", "½-½"} {
		_, err := ParseResult(in)
		require.ErrorIs(t, err, ErrParseOutcome, in)
	}
}

func TestOutcomeCodes(t *testing.T) {
	require.Equal(t, 1, int(WhiteWins))
	require.Equal(t, 2, int(BlackWins))
	require.Equal(t, 3, int(Draw))
	require.False(t, OutcomeNone.Valid())
}

func TestGameQueryJSON(t *testing.T) {
	const body = `{
		"skip_count": false,
		"player1": "alice",
		"sides": "Any",
		"speed": "Blitz",
		"outcome": "1/2-1/2",
		"range1": {"min": 1500, "max": 2000},
		"limit": 10,
		"sort": "rating"
	}`

	var q GameQuery
	require.NoError(t, json.Unmarshal([]byte(body), &q))
	require.Equal(t, "alice", q.Player1)
	require.Equal(t, AnySides, *q.Sides)
	require.Equal(t, Blitz, *q.Speed)
	require.Equal(t, Draw, *q.Outcome)
	require.Equal(t, RatingRange{Min: 1500, Max: 2000}, *q.Range1)
	require.Equal(t, int64(10), *q.Limit)
	require.Nil(t, q.Offset)
	require.Equal(t, SortRating, *q.Sort)

	require.Error(t, json.Unmarshal([]byte(`{"sort": "elo"}`), &q))
}

func TestParseRatingRange(t *testing.T) {
	r, err := ParseRatingRange("1500-2000")
	require.NoError(t, err)
	require.Equal(t, RatingRange{Min: 1500, Max: 2000}, r)
	require.Equal(t, "1500-2000", r.String())

	_, err = ParseRatingRange("1500")
	require.ErrorIs(t, err, ErrParseRange)
	_, err = ParseRatingRange("low-high")
	require.ErrorIs(t, err, ErrParseRange)
}

func TestRecordReset(t *testing.T) {
	r := Record{
		White: Side{Name: "a"},
		Date:  "2024.01.01",
		Moves: []string{"e4", "e5"},
	}
	kept := r.Detach()
	r.Reset()

	require.Empty(t, r.Moves)
	require.Empty(t, r.White.Name)
	require.Equal(t, []string{"e4", "e5"}, kept.Moves)
	require.Equal(t, "e4 e5", kept.MovesText())
}
