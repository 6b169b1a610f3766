package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/freeeve/pgndb/internal/model"
)

var playerColumns = []string{"players.id", "players.name", "players.rating", "players.game_count"}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func playerConditions(q model.PlayerQuery) sq.And {
	conds := sq.And{}
	if q.Name != "" {
		// SQLite LIKE folds ASCII case only; "é" does not match "É".
		conds = append(conds, sq.Expr(`players.name LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(q.Name)+"%"))
	}
	return conds
}

// Players lists players whose name contains q.Name, in id order. The match
// ignores case for ASCII letters only.
func (s *Store) Players(ctx context.Context, q model.PlayerQuery) (model.QueryResponse[[]model.Player], error) {
	var resp model.QueryResponse[[]model.Player]
	conds := playerConditions(q)

	if !q.SkipCount {
		count, err := s.getCount(ctx, s.sb.Select("COUNT(players.id)").From("players").Where(conds))
		if err != nil {
			return resp, err
		}
		resp.Count = &count
	}

	builder, err := applyLimitOffset(s.sb.
		Select(playerColumns...).
		From("players").
		Where(conds).
		OrderBy("players.id ASC"), q.Limit, q.Offset)
	if err != nil {
		return resp, err
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return resp, fmt.Errorf("build players query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return resp, dbErr(err)
	}
	defer rows.Close()

	resp.Data = []model.Player{}
	for rows.Next() {
		var p playerCols
		if err := rows.Scan(&p.id, &p.name, &p.rating, &p.gameCount); err != nil {
			return resp, err
		}
		resp.Data = append(resp.Data, p.player())
	}
	return resp, dbErr(rows.Err())
}

// Player returns one player by id.
func (s *Store) Player(ctx context.Context, id int64) (model.Player, error) {
	if id <= 0 {
		return model.Player{}, invalidf("player id %d", id)
	}
	query, args, err := s.sb.Select(playerColumns...).From("players").Where(sq.Eq{"players.id": id}).ToSql()
	if err != nil {
		return model.Player{}, fmt.Errorf("build player query: %w", err)
	}
	var p playerCols
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&p.id, &p.name, &p.rating, &p.gameCount); err != nil {
		return model.Player{}, dbErr(err)
	}
	return p.player(), nil
}

// PlayerGameInfo tallies wins, losses and draws of one player across both
// colors. It scans every game the player took part in.
func (s *Store) PlayerGameInfo(ctx context.Context, id int64) (model.PlayerGameInfo, error) {
	var info model.PlayerGameInfo
	if id <= 0 {
		return info, invalidf("player id %d", id)
	}

	query, args, err := s.sb.
		Select("white", "black", "outcome").
		From("games").
		Where(sq.Or{sq.Eq{"white": id}, sq.Eq{"black": id}}).
		ToSql()
	if err != nil {
		return info, fmt.Errorf("build player stats query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return info, dbErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var white, black, outcome int64
		if err := rows.Scan(&white, &black, &outcome); err != nil {
			return info, err
		}
		tally(&info, id, white, black, model.Outcome(outcome))
	}
	return info, dbErr(rows.Err())
}

// tally adds one game to info from the point of view of player id. A
// self-played game counts once per side.
func tally(info *model.PlayerGameInfo, id, white, black int64, o model.Outcome) {
	for _, side := range [2]struct {
		is  bool
		win model.Outcome
	}{{white == id, model.WhiteWins}, {black == id, model.BlackWins}} {
		if !side.is {
			continue
		}
		switch {
		case o == model.Draw:
			info.Draw++
		case o == side.win:
			info.Won++
		case o.Valid():
			info.Lost++
		}
	}
}
