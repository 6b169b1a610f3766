package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/freeeve/pgndb/internal/model"
)

var gameInsertColumns = []string{
	"white", "black", "white_rating", "black_rating", "date",
	"speed", "site", "fen", "outcome", "moves",
}

// batchStmts are the statements used to persist one batch, prepared once
// per transaction.
type batchStmts struct {
	selectPlayer *sql.Stmt
	insertPlayer *sql.Stmt
	insertGame   *sql.Stmt
	bumpPlayer   *sql.Stmt
}

// batchBuilders returns the batch statements in batchStmts field order.
// They carry no bound arguments; values are supplied at execution.
func (s *Store) batchBuilders() []sq.Sqlizer {
	return []sq.Sqlizer{
		s.sb.Select("id").From("players").Where("name = ?"),
		s.sb.Insert("players").Columns("name", "game_count").Values(sq.Expr("?"), sq.Expr("0")),
		s.sb.Insert("games").Columns(gameInsertColumns...).Values(placeholders(len(gameInsertColumns))...),
		s.sb.Update("players").
			Set("game_count", sq.Expr("game_count + 1")).
			Set("rating", sq.Expr("COALESCE(?, rating)")).
			Where("id = ?"),
	}
}

func (s *Store) prepareBatch(ctx context.Context, tx *sql.Tx) (*batchStmts, error) {
	builders := s.batchBuilders()
	stmts := make([]*sql.Stmt, 0, len(builders))
	for _, b := range builders {
		query, args, err := b.ToSql()
		if err != nil {
			closeStmts(stmts)
			return nil, fmt.Errorf("build batch statement: %w", err)
		}
		if len(args) > 0 {
			closeStmts(stmts)
			return nil, fmt.Errorf("batch statement %q binds %d values at build time", query, len(args))
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			closeStmts(stmts)
			return nil, fmt.Errorf("prepare %q: %w", query, err)
		}
		stmts = append(stmts, stmt)
	}

	return &batchStmts{
		selectPlayer: stmts[0],
		insertPlayer: stmts[1],
		insertGame:   stmts[2],
		bumpPlayer:   stmts[3],
	}, nil
}

func (b *batchStmts) Close() {
	closeStmts([]*sql.Stmt{b.selectPlayer, b.insertPlayer, b.insertGame, b.bumpPlayer})
}

// WriteBatch persists records in one transaction: players are resolved by
// name (created on first sight), each game is inserted and both players'
// game counters are bumped. The first failing record aborts the batch.
// Counter failures are logged and do not abort.
func (s *Store) WriteBatch(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	return s.wrapTx(ctx, func(tx *sql.Tx) error {
		stmts, err := s.prepareBatch(ctx, tx)
		if err != nil {
			return err
		}
		defer stmts.Close()

		for i := range records {
			if err := s.writeRecord(ctx, stmts, &records[i]); err != nil {
				return fmt.Errorf("write game %d of batch: %w", i, err)
			}
		}
		return nil
	})
}

func (s *Store) writeRecord(ctx context.Context, stmts *batchStmts, rec *model.Record) error {
	white, err := s.resolvePlayer(ctx, stmts, rec.White.Name)
	if err != nil {
		return fmt.Errorf("resolve white %q: %w", rec.White.Name, err)
	}
	black, err := s.resolvePlayer(ctx, stmts, rec.Black.Name)
	if err != nil {
		return fmt.Errorf("resolve black %q: %w", rec.Black.Name, err)
	}

	if !rec.Outcome.Valid() {
		return fmt.Errorf("game without outcome: %s vs %s", rec.White.Name, rec.Black.Name)
	}

	var speed any
	if rec.Speed != nil {
		speed = int64(*rec.Speed)
	}

	if _, err := stmts.insertGame.ExecContext(ctx,
		white,
		black,
		nullInt(rec.White.Rating),
		nullInt(rec.Black.Rating),
		rec.Date,
		speed,
		nullString(rec.Site),
		nullString(rec.FEN),
		int64(rec.Outcome),
		rec.MovesText(),
	); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	s.bumpPlayer(ctx, stmts, white, rec.White.Rating)
	if black != white {
		s.bumpPlayer(ctx, stmts, black, rec.Black.Rating)
	}
	return nil
}

// resolvePlayer returns the id of the player called name, inserting it on
// first sight. An empty name resolves to model.UnknownPlayerID.
func (s *Store) resolvePlayer(ctx context.Context, stmts *batchStmts, name string) (int64, error) {
	if name == "" {
		return model.UnknownPlayerID, nil
	}

	var id int64
	err := stmts.selectPlayer.QueryRowContext(ctx, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := stmts.insertPlayer.ExecContext(ctx, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// bumpPlayer increments a player's game count and records the rating seen
// in this game. Failures are logged only.
func (s *Store) bumpPlayer(ctx context.Context, stmts *batchStmts, id int64, rating *int) {
	if id == model.UnknownPlayerID {
		return
	}
	if _, err := stmts.bumpPlayer.ExecContext(ctx, nullInt(rating), id); err != nil {
		s.log.Warn().Err(err).Int64("player_id", id).Msg("increment game count failed")
	}
}

func placeholders(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = sq.Expr("?")
	}
	return out
}

func closeStmts(stmts []*sql.Stmt) {
	for _, st := range stmts {
		if st != nil {
			_ = st.Close()
		}
	}
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
