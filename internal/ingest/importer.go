package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/freeeve/pgndb/internal/model"
	"github.com/freeeve/pgndb/internal/pgnscan"
)

var (
	// ErrEncoding is returned when a text header is not valid UTF-8.
	ErrEncoding = errors.New("invalid header encoding")
	// ErrRating is returned when an Elo header is neither a number nor "?".
	ErrRating = errors.New("invalid rating")
	// ErrProtocol is returned when visitor signals arrive out of order.
	ErrProtocol = errors.New("visitor signal out of order")
)

// DefaultBatchSize is the number of games written per transaction.
const DefaultBatchSize = 50

// BatchWriter persists a batch of completed records.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []model.Record) error
}

type phase int

const (
	phaseIdle phase = iota
	phaseHeaders
	phaseMoves
)

// Importer turns pgnscan signals into records and hands them to a
// BatchWriter in batches. It implements pgnscan.Visitor. Callers must call
// Finish once the input is exhausted to write the last partial batch.
type Importer struct {
	ctx       context.Context
	out       BatchWriter
	batchSize int
	ratingMin int
	log       zerolog.Logger

	phase  phase
	cur     model.Record
	dateSet bool
	skip    bool
	reason  string
	batch   []model.Record

	games   int64
	skipped int64
	batches int64
}

var _ pgnscan.Visitor = (*Importer)(nil)

// NewImporter returns an Importer writing to out. A batchSize below one
// selects DefaultBatchSize; ratingMin of zero disables the rating floor.
func NewImporter(ctx context.Context, out BatchWriter, batchSize, ratingMin int, log zerolog.Logger) *Importer {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Importer{
		ctx:       ctx,
		out:       out,
		batchSize: batchSize,
		ratingMin: ratingMin,
		log:       log,
		batch:     make([]model.Record, 0, batchSize),
	}
}

// Games returns the number of games accepted so far, written or buffered.
func (im *Importer) Games() int64 { return im.games }

// Skipped returns the number of games dropped.
func (im *Importer) Skipped() int64 { return im.skipped }

// Batches returns the number of batches written.
func (im *Importer) Batches() int64 { return im.batches }

func (im *Importer) BeginGame() {
	im.cur.Reset()
	im.dateSet = false
	im.skip = false
	im.reason = ""
	im.phase = phaseHeaders
}

func (im *Importer) markSkip(reason string) {
	if !im.skip {
		im.skip = true
		im.reason = reason
	}
}

func (im *Importer) Header(key, value []byte) error {
	if im.phase != phaseHeaders {
		return fmt.Errorf("%w: header %s", ErrProtocol, key)
	}

	switch string(key) {
	case "White":
		name, err := text(key, value)
		if err != nil {
			return err
		}
		im.cur.White.Name = name
	case "Black":
		name, err := text(key, value)
		if err != nil {
			return err
		}
		im.cur.Black.Name = name
	case "WhiteElo":
		r, err := parseRating(key, value)
		if err != nil {
			return err
		}
		im.cur.White.Rating = r
	case "BlackElo":
		r, err := parseRating(key, value)
		if err != nil {
			return err
		}
		im.cur.Black.Rating = r
	case "TimeControl":
		sp, err := model.ParseTimeControl(string(value))
		if err != nil {
			return err
		}
		im.cur.Speed = &sp
	case "Date", "UTCDate":
		// The first date header wins, even when empty.
		if im.dateSet {
			return nil
		}
		date, err := text(key, value)
		if err != nil {
			return err
		}
		im.cur.Date = date
		im.dateSet = true
	case "WhiteTitle", "BlackTitle":
		if bytes.Equal(value, []byte("BOT")) {
			im.markSkip("bot")
		}
	case "Site":
		site, err := text(key, value)
		if err != nil {
			return err
		}
		im.cur.Site = &site
	case "Result":
		o, err := model.ParseResult(string(value))
		if err != nil {
			im.markSkip("result")
			return nil
		}
		im.cur.Outcome = o
	case "FEN":
		if string(value) == model.StartingFEN {
			im.cur.FEN = nil
			return nil
		}
		fen, err := text(key, value)
		if err != nil {
			return err
		}
		im.cur.FEN = &fen
	}
	return nil
}

func (im *Importer) EndHeaders() pgnscan.Skip {
	im.phase = phaseMoves

	w, b := im.cur.White.Rating, im.cur.Black.Rating
	switch {
	case w == nil || b == nil:
		im.markSkip("rating")
	case im.ratingMin > 0 && (*w < im.ratingMin || *b < im.ratingMin):
		im.markSkip("rating_min")
	case !im.cur.Outcome.Valid():
		im.markSkip("result")
	}
	return pgnscan.Skip(im.skip)
}

func (im *Importer) SAN(san []byte) error {
	if im.phase != phaseMoves {
		return fmt.Errorf("%w: move %s", ErrProtocol, san)
	}
	if !im.skip {
		im.cur.Moves = append(im.cur.Moves, string(san))
	}
	return nil
}

// BeginVariation always skips: only the mainline is kept.
func (im *Importer) BeginVariation() pgnscan.Skip { return true }

func (im *Importer) EndVariation() {}

func (im *Importer) EndGame() error {
	if im.phase == phaseIdle {
		return fmt.Errorf("%w: end of game", ErrProtocol)
	}
	im.phase = phaseIdle

	if im.skip {
		im.skipped++
		im.log.Debug().
			Str("reason", im.reason).
			Str("white", im.cur.White.Name).
			Str("black", im.cur.Black.Name).
			Msg("skip game")
		return nil
	}

	if im.cur.Date == "" {
		im.cur.Date = model.UnknownDate
	}
	im.batch = append(im.batch, im.cur.Detach())
	im.games++

	if len(im.batch) >= im.batchSize {
		return im.flush()
	}
	return nil
}

// Finish writes any buffered records.
func (im *Importer) Finish() error {
	return im.flush()
}

func (im *Importer) flush() error {
	if len(im.batch) == 0 {
		return nil
	}
	if err := im.out.WriteBatch(im.ctx, im.batch); err != nil {
		return fmt.Errorf("write batch %d: %w", im.batches+1, err)
	}
	im.batches++
	clear(im.batch)
	im.batch = im.batch[:0]
	return nil
}

func text(key, value []byte) (string, error) {
	if !utf8.Valid(value) {
		return "", fmt.Errorf("%w: %s", ErrEncoding, key)
	}
	return string(value), nil
}

// parseRating reads an Elo header. "?" and an empty value mean unrated.
func parseRating(key, value []byte) (*int, error) {
	if len(value) == 0 || string(value) == "?" {
		return nil, nil
	}
	r, err := strconv.Atoi(string(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrRating, key, value)
	}
	return &r, nil
}
