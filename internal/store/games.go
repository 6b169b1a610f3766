package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"

	"github.com/freeeve/pgndb/internal/model"
)

var gameColumns = []string{
	"games.id", "games.white", "games.black", "games.white_rating", "games.black_rating",
	"games.date", "games.speed", "games.site", "games.fen", "games.outcome", "games.moves",
	"white.id", "white.name", "white.rating", "white.game_count",
	"black.id", "black.name", "black.rating", "black.game_count",
}

const (
	joinWhite = "players white ON games.white = white.id"
	joinBlack = "players black ON games.black = black.id"
)

// colorCols names the columns of one color in the joined game query.
type colorCols struct {
	name   string
	rating string
}

var (
	whiteCols = colorCols{name: "white.name", rating: "games.white_rating"}
	blackCols = colorCols{name: "black.name", rating: "games.black_rating"}
)

// gameConditions builds the filter shared by the data and count queries.
func gameConditions(q model.GameQuery) (sq.And, error) {
	conds := sq.And{}

	for i, r := range []*model.RatingRange{q.Range1, q.Range2} {
		if r != nil && r.Min > r.Max {
			return nil, invalidf("range%d: min %d above max %d", i+1, r.Min, r.Max)
		}
	}

	sides := model.WhiteBlack
	if q.Sides != nil {
		sides = *q.Sides
	}

	switch sides {
	case model.WhiteBlack:
		conds = append(conds, arrangement(q, whiteCols, blackCols)...)
	case model.BlackWhite:
		conds = append(conds, arrangement(q, blackCols, whiteCols)...)
	case model.AnySides:
		wb := arrangement(q, whiteCols, blackCols)
		bw := arrangement(q, blackCols, whiteCols)
		if len(wb) > 0 {
			conds = append(conds, sq.Or{wb, bw})
		}
	default:
		return nil, invalidf("sides %d", sides)
	}

	if q.Speed != nil {
		if !q.Speed.Valid() {
			return nil, invalidf("speed %d", *q.Speed)
		}
		conds = append(conds, sq.Eq{"games.speed": int64(*q.Speed)})
	}

	if q.Outcome != nil {
		if !q.Outcome.Valid() {
			return nil, invalidf("outcome %d", *q.Outcome)
		}
		conds = append(conds, sq.Eq{"games.outcome": int64(*q.Outcome)})
	}

	return conds, nil
}

// arrangement filters player1 onto p1 columns and player2 onto p2 columns.
func arrangement(q model.GameQuery, p1, p2 colorCols) sq.And {
	conds := sq.And{}
	if q.Player1 != "" {
		conds = append(conds, sq.Eq{p1.name: q.Player1})
	}
	if q.Player2 != "" {
		conds = append(conds, sq.Eq{p2.name: q.Player2})
	}
	if q.Range1 != nil {
		conds = append(conds, sq.GtOrEq{p1.rating: q.Range1.Min}, sq.LtOrEq{p1.rating: q.Range1.Max})
	}
	if q.Range2 != nil {
		conds = append(conds, sq.GtOrEq{p2.rating: q.Range2.Min}, sq.LtOrEq{p2.rating: q.Range2.Max})
	}
	return conds
}

func gameOrder(sort *model.Sort) ([]string, error) {
	if sort == nil {
		return []string{"games.id ASC"}, nil
	}
	var key string
	switch *sort {
	case model.SortDate:
		key = "games.date DESC"
	case model.SortRating:
		key = "MAX(COALESCE(games.white_rating, 0), COALESCE(games.black_rating, 0)) DESC"
	case model.SortSpeed:
		key = "games.speed DESC"
	case model.SortOutcome:
		key = "games.outcome DESC"
	default:
		return nil, invalidf("sort %d", *sort)
	}
	return []string{key, "games.id ASC"}, nil
}

// applyLimitOffset validates and applies paging. SQLite accepts OFFSET
// only after a LIMIT, so a bare offset gets an unbounded limit.
func applyLimitOffset(b sq.SelectBuilder, limit, offset *int64) (sq.SelectBuilder, error) {
	if limit != nil && *limit < 0 {
		return b, invalidf("limit %d", *limit)
	}
	if offset != nil && *offset < 0 {
		return b, invalidf("offset %d", *offset)
	}
	switch {
	case limit != nil:
		b = b.Limit(uint64(*limit))
	case offset != nil:
		b = b.Limit(math.MaxInt64)
	}
	if offset != nil {
		b = b.Offset(uint64(*offset))
	}
	return b, nil
}

func (s *Store) getCount(ctx context.Context, builder sq.SelectBuilder) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, dbErr(err)
	}
	return count, nil
}

// Games returns the page of games matching q, each joined with both
// players, plus the unpaged match count unless q.SkipCount is set.
func (s *Store) Games(ctx context.Context, q model.GameQuery) (model.QueryResponse[[]model.GameRow], error) {
	var resp model.QueryResponse[[]model.GameRow]

	conds, err := gameConditions(q)
	if err != nil {
		return resp, err
	}
	order, err := gameOrder(q.Sort)
	if err != nil {
		return resp, err
	}

	if !q.SkipCount {
		count, err := s.getCount(ctx, s.sb.
			Select("COUNT(games.id)").
			From("games").
			Join(joinWhite).
			Join(joinBlack).
			Where(conds))
		if err != nil {
			return resp, err
		}
		resp.Count = &count
	}

	builder := s.sb.
		Select(gameColumns...).
		From("games").
		Join(joinWhite).
		Join(joinBlack).
		Where(conds).
		OrderBy(order...)
	if builder, err = applyLimitOffset(builder, q.Limit, q.Offset); err != nil {
		return resp, err
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return resp, fmt.Errorf("build games query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return resp, dbErr(err)
	}
	defer rows.Close()

	resp.Data = []model.GameRow{}
	for rows.Next() {
		row, err := scanGameRow(rows)
		if err != nil {
			return resp, err
		}
		resp.Data = append(resp.Data, row)
	}
	return resp, dbErr(rows.Err())
}

// Game returns one game joined with both players.
func (s *Store) Game(ctx context.Context, id int64) (model.GameRow, error) {
	if id <= 0 {
		return model.GameRow{}, invalidf("game id %d", id)
	}
	query, args, err := s.sb.
		Select(gameColumns...).
		From("games").
		Join(joinWhite).
		Join(joinBlack).
		Where(sq.Eq{"games.id": id}).
		ToSql()
	if err != nil {
		return model.GameRow{}, fmt.Errorf("build game query: %w", err)
	}
	row, err := scanGameRow(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return model.GameRow{}, dbErr(err)
	}
	return row, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGameRow(r rowScanner) (model.GameRow, error) {
	var (
		row                      model.GameRow
		whiteRating, blackRating sql.NullInt64
		speed                    sql.NullInt64
		site, fen                sql.NullString
		outcome                  int64
		white, black             playerCols
	)
	err := r.Scan(
		&row.Game.ID, &row.Game.White, &row.Game.Black, &whiteRating, &blackRating,
		&row.Game.Date, &speed, &site, &fen, &outcome, &row.Game.Moves,
		&white.id, &white.name, &white.rating, &white.gameCount,
		&black.id, &black.name, &black.rating, &black.gameCount,
	)
	if err != nil {
		return row, err
	}

	row.Game.WhiteRating = intPtr(whiteRating)
	row.Game.BlackRating = intPtr(blackRating)
	if speed.Valid {
		sp := model.Speed(speed.Int64)
		row.Game.Speed = &sp
	}
	row.Game.Site = strPtr(site)
	row.Game.FEN = strPtr(fen)
	row.Game.Outcome = model.Outcome(outcome)
	row.White = white.player()
	row.Black = black.player()
	return row, nil
}

type playerCols struct {
	id        int64
	name      string
	rating    sql.NullInt64
	gameCount sql.NullInt64
}

func (p playerCols) player() model.Player {
	return model.Player{
		ID:        p.id,
		Name:      p.name,
		Rating:    intPtr(p.rating),
		GameCount: p.gameCount.Int64,
	}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
