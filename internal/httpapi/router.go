package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/freeeve/pgndb/internal/board"
	"github.com/freeeve/pgndb/internal/codec"
	"github.com/freeeve/pgndb/internal/eco"
	"github.com/freeeve/pgndb/internal/ingest"
	"github.com/freeeve/pgndb/internal/model"
	"github.com/freeeve/pgndb/internal/store"
)

const dbExt = ".sqlite"

// Options wires the router to its dependencies.
type Options struct {
	Logger zerolog.Logger
	DBDir  string        // Directory holding <name>.sqlite files
	Jobs   *ingest.Jobs  // Optional, enables /v1/imports
	Eco    *eco.Database // Optional, adds opening names to games
	// BaseContext outlives requests and bounds background imports.
	BaseContext context.Context
}

// Handler serves the query API. Every request opens its own store handle.
type Handler struct {
	dbDir   string
	jobs    *ingest.Jobs
	ecoDB   *eco.Database
	baseCtx context.Context
	log     zerolog.Logger
}

// NewRouter creates the HTTP router.
func NewRouter(opts Options) http.Handler {
	h := &Handler{
		dbDir:   opts.DBDir,
		jobs:    opts.Jobs,
		ecoDB:   opts.Eco,
		baseCtx: opts.BaseContext,
		log:     opts.Logger,
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /readyz", h.health)

	mux.HandleFunc("GET /v1/databases", h.listDatabases)
	mux.HandleFunc("GET /v1/databases/{name}", h.database)
	mux.HandleFunc("PUT /v1/databases/{name}/title", h.setTitle)
	mux.HandleFunc("GET /v1/databases/{name}/games", h.games)
	mux.HandleFunc("GET /v1/databases/{name}/games/{id}", h.game)
	mux.HandleFunc("GET /v1/databases/{name}/games/{id}/replay", h.replay)
	mux.HandleFunc("GET /v1/databases/{name}/players", h.players)
	mux.HandleFunc("GET /v1/databases/{name}/players/{id}", h.player)
	mux.HandleFunc("GET /v1/databases/{name}/players/{id}/stats", h.playerStats)

	mux.HandleFunc("GET /v1/imports", h.listImports)
	mux.HandleFunc("POST /v1/imports", h.startImport)
	mux.HandleFunc("GET /v1/imports/{id}", h.importStatus)

	return CORS(RequestID(AccessLog(opts.Logger, mux)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// dbPath resolves a database name to its file, rejecting names that would
// leave the database directory.
func (h *Handler) dbPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", badRequest("invalid database name %q", name)
	}
	return filepath.Join(h.dbDir, name+dbExt), nil
}

func (h *Handler) open(r *http.Request) (*store.Store, error) {
	path, err := h.dbPath(r.PathValue("name"))
	if err != nil {
		return nil, err
	}
	return store.Open(r.Context(), path, h.log)
}

func pathID(r *http.Request, key string) (int64, error) {
	s := r.PathValue(key)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", key, s)
	}
	return id, nil
}

// DatabaseEntry is one database of the listing.
type DatabaseEntry struct {
	Name string `json:"name"`
	model.DatabaseInfo
}

func (h *Handler) listDatabases(w http.ResponseWriter, r *http.Request) {
	paths, err := filepath.Glob(filepath.Join(h.dbDir, "*"+dbExt))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sort.Strings(paths)

	out := make([]DatabaseEntry, 0, len(paths))
	for _, p := range paths {
		info, err := store.Info(r.Context(), p, h.log)
		if err != nil {
			h.log.Warn().Err(err).Str("db", p).Msg("skip unreadable database")
			continue
		}
		out = append(out, DatabaseEntry{
			Name:         strings.TrimSuffix(filepath.Base(p), dbExt),
			DatabaseInfo: info,
		})
	}
	writeJSON(w, out)
}

func (h *Handler) database(w http.ResponseWriter, r *http.Request) {
	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	info, err := s.Info(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, info)
}

type titleRequest struct {
	Title string `json:"title"`
}

func (h *Handler) setTitle(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.log, badRequest("decode body: %v", err))
		return
	}

	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	if err := s.SetTitle(r.Context(), req.Title); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	info, err := s.Info(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, info)
}

func (h *Handler) games(w http.ResponseWriter, r *http.Request) {
	q, err := parseGameQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	resp, err := s.Games(r.Context(), q)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, resp)
}

func (h *Handler) game(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	row, err := s.Game(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := GameResponse{GameRow: row}
	if h.ecoDB != nil {
		fen := ""
		if row.Game.FEN != nil {
			fen = *row.Game.FEN
		}
		resp.Opening = h.ecoDB.Classify(fen, row.Game.MoveList())
	}
	writeJSON(w, resp)
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	row, err := s.Game(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := ReplayResponse{GameID: id}
	if row.Game.FEN != nil {
		resp.FEN = *row.Game.FEN
	}
	plies, err := board.Replay(resp.FEN, row.Game.MoveList())
	if err != nil {
		h.log.Debug().Err(err).Int64("game", id).Msg("replay stopped")
		resp.Error = err.Error()
	}
	resp.Plies = plies
	writeJSON(w, resp)
}

func (h *Handler) players(w http.ResponseWriter, r *http.Request) {
	q, err := parsePlayerQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	resp, err := s.Players(r.Context(), q)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, resp)
}

func (h *Handler) player(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	p, err := s.Player(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) playerStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	s, err := h.open(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer s.Close()

	info, err := s.PlayerGameInfo(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, info)
}

type importRequest struct {
	Path string `json:"path"`
}

func (h *Handler) listImports(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, r, h.log, store.ErrUnavailable)
		return
	}
	writeJSON(w, h.jobs.List())
}

func (h *Handler) startImport(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, r, h.log, store.ErrUnavailable)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.log, badRequest("decode body: %v", err))
		return
	}
	if !codec.IsArchive(req.Path) {
		writeError(w, r, h.log, badRequest("not a PGN archive: %q", req.Path))
		return
	}
	if fi, err := os.Stat(req.Path); err != nil || fi.IsDir() {
		writeError(w, r, h.log, badRequest("cannot read %q", req.Path))
		return
	}

	job := h.jobs.Start(h.baseCtx, req.Path)
	writeJSONStatus(w, http.StatusAccepted, job)
}

func (h *Handler) importStatus(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, r, h.log, store.ErrUnavailable)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	job, ok := h.jobs.Get(id)
	if !ok {
		writeError(w, r, h.log, fmt.Errorf("%w: import %d", store.ErrNotFound, id))
		return
	}
	writeJSON(w, job)
}
