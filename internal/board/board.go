// Package board replays stored SAN move lists into positions.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freeeve/pgn/v3"
)

var ErrIllegalMove = errors.New("illegal move")

// Ply is one half-move of a replayed game.
type Ply struct {
	Number int    `json:"ply"`
	SAN    string `json:"san"`
	UCI    string `json:"uci"`
	FEN    string `json:"fen"` // position after the move
}

// Position returns the position described by fen, or the standard
// starting position when fen is empty.
func Position(fen string) (*pgn.GameState, error) {
	if fen == "" {
		return pgn.NewStartingPosition(), nil
	}
	pos, err := pgn.NewGame(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return pos, nil
}

// Play applies one SAN move to pos.
func Play(pos *pgn.GameState, san string) (pgn.Mv, error) {
	clean := strings.TrimRight(san, "+#")
	mv, err := pgn.ParseSAN(pos, clean)
	if err != nil {
		return mv, fmt.Errorf("%w %q: %w", ErrIllegalMove, san, err)
	}
	if err := pgn.ApplyMove(pos, mv); err != nil {
		return mv, fmt.Errorf("%w %q: %w", ErrIllegalMove, san, err)
	}
	return mv, nil
}

// Replay plays moves from fen and returns every ply. On an illegal move it
// returns the plies played so far along with the error.
func Replay(fen string, moves []string) ([]Ply, error) {
	pos, err := Position(fen)
	if err != nil {
		return nil, err
	}

	plies := make([]Ply, 0, len(moves))
	for i, san := range moves {
		mv, err := Play(pos, san)
		if err != nil {
			return plies, fmt.Errorf("ply %d: %w", i+1, err)
		}
		plies = append(plies, Ply{
			Number: i + 1,
			SAN:    san,
			UCI:    UCI(mv),
			FEN:    pos.ToFEN(),
		})
	}
	return plies, nil
}

// UCI renders mv in long algebraic notation, e.g. "e2e4" or "e7e8q".
func UCI(mv pgn.Mv) string {
	const files = "abcdefgh"
	const ranks = "12345678"

	from, to := int(mv.From), int(mv.To)
	uci := []byte{files[from%8], ranks[from/8], files[to%8], ranks[to/8]}

	switch mv.Promo {
	case pgn.PromoQueen:
		uci = append(uci, 'q')
	case pgn.PromoRook:
		uci = append(uci, 'r')
	case pgn.PromoBishop:
		uci = append(uci, 'b')
	case pgn.PromoKnight:
		uci = append(uci, 'n')
	}
	return string(uci)
}
