package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/pgndb/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Create(context.Background(), filepath.Join(t.TempDir(), "db", "test.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rating(v int) *int { return &v }

func speedPtr(s model.Speed) *model.Speed { return &s }

func record(white string, wr int, black string, br int, sp model.Speed, o model.Outcome, date string) model.Record {
	return model.Record{
		White:   model.Side{Name: white, Rating: rating(wr)},
		Black:   model.Side{Name: black, Rating: rating(br)},
		Speed:   speedPtr(sp),
		Date:    date,
		Outcome: o,
		Moves:   []string{"e4", "e5", "Nf3"},
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "x.sqlite")

	s, err := Create(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.InitDB(ctx))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Untitled", title)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InitDB(ctx))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.sqlite"), zerolog.Nop())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestWriteBatchDedupAndCounters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("alice", 1500, "bob", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
		record("bob", 1610, "carol", 1700, model.Blitz, model.Draw, "2024.01.02"),
	}))
	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("carol", 1690, "alice", 1510, model.Rapid, model.BlackWins, "2024.01.03"),
		record("alice", 1520, "alice", 1520, model.Rapid, model.Draw, "2024.01.04"),
	}))

	players, err := s.Players(ctx, model.PlayerQuery{})
	require.NoError(t, err)
	require.NotNil(t, players.Count)
	assert.EqualValues(t, 3, *players.Count)

	counts := map[string]int64{}
	ratings := map[string]int{}
	for _, p := range players.Data {
		counts[p.Name] = p.GameCount
		require.NotNil(t, p.Rating)
		ratings[p.Name] = *p.Rating
	}
	assert.Equal(t, map[string]int64{"alice": 3, "bob": 2, "carol": 2}, counts)
	assert.Equal(t, 1520, ratings["alice"])
	assert.Equal(t, 1610, ratings["bob"])

	n, err := s.GameCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestBatchStatementsBindNoValues(t *testing.T) {
	s := newTestStore(t)
	for _, b := range s.batchBuilders() {
		query, args, err := b.ToSql()
		require.NoError(t, err)
		assert.Empty(t, args, query)
	}
}

func TestWriteBatchSingleNewPlayer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("a", 1, "b", 2, model.Blitz, model.WhiteWins, "2024.01.01"),
	}))

	p, err := s.Player(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name)
	assert.EqualValues(t, 1, p.GameCount)
	require.NotNil(t, p.Rating)
	assert.Equal(t, 1, *p.Rating)
}

func TestWriteBatchRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := record("dave", 1500, "erin", 1500, model.Blitz, model.OutcomeNone, "2024.01.01")
	err := s.WriteBatch(ctx, []model.Record{
		record("alice", 1500, "bob", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
		bad,
	})
	require.Error(t, err)

	n, err := s.GameCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.PlayerCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteBatchUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := record("", 0, "bob", 1600, model.Blitz, model.WhiteWins, "2024.01.01")
	rec.White.Rating = nil
	require.NoError(t, s.WriteBatch(ctx, []model.Record{rec}))

	n, err := s.GameCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	players, err := s.Players(ctx, model.PlayerQuery{})
	require.NoError(t, err)
	require.Len(t, players.Data, 1)
	assert.Equal(t, "bob", players.Data[0].Name)
	assert.EqualValues(t, 1, players.Data[0].GameCount)

	// Joined reads drop games with an unknown side, count included.
	games, err := s.Games(ctx, model.GameQuery{})
	require.NoError(t, err)
	assert.Empty(t, games.Data)
	assert.EqualValues(t, 0, *games.Count)
}

func TestGamesSpeedFilterWithLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var recs []model.Record
	for i := range 25 {
		recs = append(recs, record(fmt.Sprintf("p%d", i), 1500+i, "opp", 1500, model.Blitz, model.WhiteWins, "2024.02.01"))
	}
	for i := range 5 {
		recs = append(recs, record(fmt.Sprintf("q%d", i), 1500, "opp", 1500, model.Bullet, model.Draw, "2024.02.01"))
	}
	require.NoError(t, s.WriteBatch(ctx, recs))

	limit := int64(10)
	resp, err := s.Games(ctx, model.GameQuery{Speed: speedPtr(model.Blitz), Limit: &limit})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 10)
	require.NotNil(t, resp.Count)
	assert.EqualValues(t, 25, *resp.Count)
	for _, row := range resp.Data {
		assert.Equal(t, model.Blitz, *row.Game.Speed)
		assert.Equal(t, "opp", row.Black.Name)
		assert.Equal(t, row.Game.White, row.White.ID)
	}

	resp, err = s.Games(ctx, model.GameQuery{Speed: speedPtr(model.Blitz), Limit: &limit, SkipCount: true})
	require.NoError(t, err)
	assert.Nil(t, resp.Count)

	offset := int64(20)
	resp, err = s.Games(ctx, model.GameQuery{Speed: speedPtr(model.Blitz), Offset: &offset})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 5)
	assert.EqualValues(t, 25, *resp.Count)
}

func TestGamesPlayerFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("alice", 1500, "bob", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
		record("bob", 1610, "alice", 1490, model.Blitz, model.BlackWins, "2024.01.02"),
		record("alice", 1800, "carol", 1700, model.Rapid, model.Draw, "2024.01.03"),
	}))

	sides := func(s model.Sides) *model.Sides { return &s }

	tests := []struct {
		name  string
		q     model.GameQuery
		count int64
	}{
		{"player1 white", model.GameQuery{Player1: "alice"}, 2},
		{"player1 black", model.GameQuery{Player1: "alice", Sides: sides(model.BlackWhite)}, 1},
		{"player1 any", model.GameQuery{Player1: "alice", Sides: sides(model.AnySides)}, 3},
		{"pair", model.GameQuery{Player1: "alice", Player2: "bob"}, 1},
		{"pair any", model.GameQuery{Player1: "alice", Player2: "bob", Sides: sides(model.AnySides)}, 2},
		{"range1", model.GameQuery{Player1: "alice", Range1: &model.RatingRange{Min: 1700, Max: 1900}}, 1},
		{"range2", model.GameQuery{Range2: &model.RatingRange{Min: 1600, Max: 1700}}, 2},
		{"outcome", model.GameQuery{Outcome: func() *model.Outcome { o := model.Draw; return &o }()}, 1},
		{"unknown player", model.GameQuery{Player1: "zed"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.Games(ctx, tt.q)
			require.NoError(t, err)
			require.NotNil(t, resp.Count)
			assert.Equal(t, tt.count, *resp.Count)
			assert.Len(t, resp.Data, int(tt.count))
		})
	}
}

func TestGamesSort(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("a", 1500, "b", 2100, model.Bullet, model.Draw, "2024.01.02"),
		record("c", 2200, "d", 1400, model.Classical, model.WhiteWins, "2024.01.01"),
		record("e", 1300, "f", 1300, model.Blitz, model.BlackWins, "2024.01.03"),
		record("g", 1300, "h", 1300, model.Blitz, model.BlackWins, "2024.01.03"),
	}))

	ids := func(sort model.Sort) []int64 {
		resp, err := s.Games(ctx, model.GameQuery{Sort: &sort, SkipCount: true})
		require.NoError(t, err)
		var out []int64
		for _, row := range resp.Data {
			out = append(out, row.Game.ID)
		}
		return out
	}

	assert.Equal(t, []int64{3, 4, 1, 2}, ids(model.SortDate))
	assert.Equal(t, []int64{2, 1, 3, 4}, ids(model.SortRating))
	assert.Equal(t, []int64{2, 3, 4, 1}, ids(model.SortSpeed))
	assert.Equal(t, []int64{1, 3, 4, 2}, ids(model.SortOutcome))
}

func TestGamesInvalidQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	neg := int64(-1)
	bad := []model.GameQuery{
		{Limit: &neg},
		{Offset: &neg},
		{Range1: &model.RatingRange{Min: 2000, Max: 1000}},
		{Speed: speedPtr(model.Speed(9))},
		{Sort: func() *model.Sort { v := model.Sort(7); return &v }()},
	}
	for i, q := range bad {
		_, err := s.Games(ctx, q)
		require.ErrorIs(t, err, ErrInvalidQuery, "query %d", i)
	}
}

func TestGameByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := record("alice", 1500, "bob", 1600, model.Blitz, model.WhiteWins, "2024.01.01")
	site := "https://lichess.org/abcd"
	fen := "8/8/8/8/8/8/8/K6k w - - 0 1"
	rec.Site, rec.FEN = &site, &fen
	require.NoError(t, s.WriteBatch(ctx, []model.Record{rec}))

	row, err := s.Game(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", row.White.Name)
	assert.Equal(t, "bob", row.Black.Name)
	assert.Equal(t, "e4 e5 Nf3", row.Game.Moves)
	assert.Equal(t, []string{"e4", "e5", "Nf3"}, row.Game.MoveList())
	assert.Equal(t, site, *row.Game.Site)
	assert.Equal(t, fen, *row.Game.FEN)
	assert.Equal(t, 1600, *row.Game.BlackRating)

	_, err = s.Game(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Game(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestPlayersNameFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("MagnusFan", 1500, "magnolia", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
		record("hikaru_x", 1500, "100%", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
	}))

	resp, err := s.Players(ctx, model.PlayerQuery{Name: "MAGN"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, *resp.Count)
	assert.Equal(t, "MagnusFan", resp.Data[0].Name)

	resp, err = s.Players(ctx, model.PlayerQuery{Name: "_"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, *resp.Count)

	resp, err = s.Players(ctx, model.PlayerQuery{Name: "%"})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "100%", resp.Data[0].Name)

	limit, offset := int64(1), int64(1)
	resp, err = s.Players(ctx, model.PlayerQuery{Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "magnolia", resp.Data[0].Name)
	assert.EqualValues(t, 4, *resp.Count)

	p, err := s.Player(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "magnolia", p.Name)
}

func TestPlayersNameFilterFoldsASCIIOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("Élodie", 1500, "zoe", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
	}))

	resp, err := s.Players(ctx, model.PlayerQuery{Name: "ÉLO"})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Élodie", resp.Data[0].Name)

	resp, err = s.Players(ctx, model.PlayerQuery{Name: "éLO"})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)

	resp, err = s.Players(ctx, model.PlayerQuery{Name: "ZOE"})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
}

func TestPlayerGameInfo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("alice", 1500, "bob", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
		record("bob", 1500, "alice", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
		record("bob", 1500, "alice", 1600, model.Blitz, model.BlackWins, "2024.01.01"),
		record("alice", 1500, "bob", 1600, model.Blitz, model.Draw, "2024.01.01"),
		record("bob", 1500, "carol", 1600, model.Blitz, model.Draw, "2024.01.01"),
	}))

	info, err := s.PlayerGameInfo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PlayerGameInfo{Won: 2, Lost: 1, Draw: 1}, info)

	info, err = s.PlayerGameInfo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, model.PlayerGameInfo{Won: 1, Lost: 2, Draw: 2}, info)
}

func TestTitleAndInfo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.WriteBatch(ctx, []model.Record{
		record("alice", 1500, "bob", 1600, model.Blitz, model.WhiteWins, "2024.01.01"),
	}))

	require.ErrorIs(t, s.SetTitle(ctx, "  "), ErrInvalidQuery)
	require.NoError(t, s.SetTitle(ctx, "January blitz"))
	require.NoError(t, s.SetTitle(ctx, "January blitz 2"))

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "January blitz 2", info.Title)
	assert.Equal(t, "test.sqlite", info.Description)
	assert.EqualValues(t, 2, info.PlayerCount)
	assert.EqualValues(t, 1, info.GameCount)
	assert.Positive(t, info.StorageSize)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "r.sqlite")
	s, err := Create(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path))
	_, err = Open(ctx, path, zerolog.Nop())
	require.ErrorIs(t, err, ErrUnavailable)
}
