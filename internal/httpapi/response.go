package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/freeeve/pgndb/internal/board"
	"github.com/freeeve/pgndb/internal/eco"
	"github.com/freeeve/pgndb/internal/model"
	"github.com/freeeve/pgndb/internal/store"
)

// GameResponse is a stored game with its players and opening.
type GameResponse struct {
	model.GameRow
	Opening *eco.Opening `json:"opening,omitempty"`
}

// ReplayResponse lists every ply of a game. Error is set when the stored
// moves stop being legal partway through.
type ReplayResponse struct {
	GameID int64       `json:"game_id"`
	FEN    string      `json:"fen,omitempty"`
	Plies  []board.Ply `json:"plies"`
	Error  string      `json:"error,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps package errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidQuery),
		errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrParseSpeed),
		errors.Is(err, model.ErrParseOutcome),
		errors.Is(err, model.ErrParseSort),
		errors.Is(err, model.ErrParseSides),
		errors.Is(err, model.ErrParseRange):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status := statusOf(err)
	rid := GetRequestID(r.Context())

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("rid", rid).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSONStatus(w, status, errorResponse{Error: msg, RequestID: rid})
}
