package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/pgndb/internal/model"
	"github.com/freeeve/pgndb/internal/store"
)

func testConfig(t *testing.T) Config {
	return Config{
		DataDir: t.TempDir(),
		Logger:  zerolog.Nop(),
	}
}

func writeArchive(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := []byte(content)
	if strings.HasSuffix(name, ".zst") {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		data = enc.EncodeAll(data, nil)
		require.NoError(t, enc.Close())
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func openDB(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDatabasePath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "db", "lichess_2024-01.sqlite"),
		DatabasePath("data", "/tmp/lichess_2024-01.pgn.zst"))
	assert.Equal(t, filepath.Join("data", "db", "games.sqlite"), DatabasePath("data", "games.pgn"))
}

func TestImportFileSkipsBotAndUnrated(t *testing.T) {
	bot := std("alice", "stockfish", "1-0")
	bot["BlackTitle"] = "BOT"
	noElo := std("carol", "dave", "0-1")
	delete(noElo, "WhiteElo")

	cfg := testConfig(t)
	src := writeArchive(t, t.TempDir(), "two.pgn", pgnGame(bot, "1. e4 1-0")+pgnGame(noElo, "1. d4 0-1"))

	stats, err := ImportFile(context.Background(), cfg, src)
	require.NoError(t, err)
	assert.Zero(t, stats.Games)
	assert.EqualValues(t, 2, stats.Skipped)

	s := openDB(t, stats.Path)
	games, err := s.GameCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, games)
	players, err := s.PlayerCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, players)
}

func TestImportFileZstdAndReimport(t *testing.T) {
	ctx := context.Background()
	var content strings.Builder
	pairs := [][2]string{{"alice", "bob"}, {"bob", "carol"}, {"carol", "alice"}, {"dave", "alice"}}
	for _, p := range pairs {
		h := std(p[0], p[1], "1/2-1/2")
		content.WriteString(pgnGame(h, "1. e4 e5 2. Nf3 Nc6 1/2-1/2"))
	}
	h := std("erin", "frank", "1-0")
	h["FEN"] = model.StartingFEN
	content.WriteString(pgnGame(h, "1. e4 1-0"))

	cfg := testConfig(t)
	cfg.BatchSize = 2
	src := writeArchive(t, t.TempDir(), "mix.pgn.zst", content.String())

	for range 2 {
		stats, err := ImportFile(ctx, cfg, src)
		require.NoError(t, err)
		assert.EqualValues(t, 5, stats.Games)
		assert.EqualValues(t, 3, stats.Batches)
		assert.Equal(t, filepath.Join(cfg.DataDir, "db", "mix.sqlite"), stats.Path)

		s := openDB(t, stats.Path)
		resp, err := s.Players(ctx, model.PlayerQuery{})
		require.NoError(t, err)
		assert.EqualValues(t, 6, *resp.Count)
		counts := map[string]int64{}
		for _, p := range resp.Data {
			counts[p.Name] = p.GameCount
		}
		assert.Equal(t, map[string]int64{"alice": 3, "bob": 2, "carol": 2, "dave": 1, "erin": 1, "frank": 1}, counts)

		games, err := s.Games(ctx, model.GameQuery{Player1: "erin"})
		require.NoError(t, err)
		require.Len(t, games.Data, 1)
		assert.Nil(t, games.Data[0].Game.FEN)
		require.NoError(t, s.Close())
	}
}

func TestImportFileMaxGames(t *testing.T) {
	var content strings.Builder
	for range 10 {
		content.WriteString(pgnGame(std("alice", "bob", "1-0"), "1. e4 1-0"))
	}
	cfg := testConfig(t)
	cfg.MaxGames = 4
	src := writeArchive(t, t.TempDir(), "many.pgn", content.String())

	stats, err := ImportFile(context.Background(), cfg, src)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Games)

	n, err := openDB(t, stats.Path).GameCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestImportFileFatal(t *testing.T) {
	h := std("alice", "bob", "1-0")
	h["TimeControl"] = "90"
	cfg := testConfig(t)
	src := writeArchive(t, t.TempDir(), "bad.pgn", pgnGame(h, "1. e4 1-0"))

	_, err := ImportFile(context.Background(), cfg, src)
	require.ErrorIs(t, err, model.ErrParseTimeControl)

	_, err = ImportFile(context.Background(), cfg, filepath.Join(t.TempDir(), "missing.pgn"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestImportFileCancelled(t *testing.T) {
	cfg := testConfig(t)
	src := writeArchive(t, t.TempDir(), "c.pgn", pgnGame(std("alice", "bob", "1-0"), "1. e4 1-0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ImportFile(ctx, cfg, src)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWorkerProcessNewFiles(t *testing.T) {
	watch := t.TempDir()
	cfg := testConfig(t)
	cfg.WatchDir = watch
	cfg.Workers = 2

	game := pgnGame(std("alice", "bob", "1-0"), "1. e4 1-0")
	writeArchive(t, watch, "a.pgn", game)
	writeArchive(t, watch, "b.pgn.zst", game)
	writeArchive(t, watch, "notes.txt", "not a game")

	w, err := NewWorker(cfg)
	require.NoError(t, err)

	n, err := w.ProcessNewFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.FileExists(t, filepath.Join(watch, "processed", "a.pgn"))
	assert.FileExists(t, filepath.Join(watch, "processed", "b.pgn.zst"))
	assert.FileExists(t, filepath.Join(watch, "notes.txt"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "db", "a.sqlite"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "db", "b.sqlite"))

	n, err = w.ProcessNewFiles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerDefersSameDatabase(t *testing.T) {
	watch := t.TempDir()
	cfg := testConfig(t)
	cfg.WatchDir = watch
	cfg.Workers = 2

	writeArchive(t, watch, "a.pgn", pgnGame(std("alice", "bob", "1-0"), "1. e4 1-0"))
	writeArchive(t, watch, "a.pgn.zst", pgnGame(std("carol", "dave", "0-1"), "1. d4 0-1")+
		pgnGame(std("erin", "frank", "1/2-1/2"), "1. c4 1/2-1/2"))

	w, err := NewWorker(cfg)
	require.NoError(t, err)

	n, err := w.ProcessNewFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(watch, "processed", "a.pgn"))
	assert.FileExists(t, filepath.Join(watch, "a.pgn.zst"))

	dbPath := filepath.Join(cfg.DataDir, "db", "a.sqlite")
	s := openDB(t, dbPath)
	games, err := s.GameCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, games)
	require.NoError(t, s.Close())

	n, err = w.ProcessNewFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(watch, "processed", "a.pgn.zst"))

	s = openDB(t, dbPath)
	games, err = s.GameCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, games)
}

func TestNewWorkerDisabled(t *testing.T) {
	w, err := NewWorker(Config{})
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestJobs(t *testing.T) {
	cfg := testConfig(t)
	src := writeArchive(t, t.TempDir(), "job.pgn", pgnGame(std("alice", "bob", "1-0"), "1. e4 1-0"))

	jobs := NewJobs(cfg)
	job := jobs.Start(context.Background(), src)
	assert.Equal(t, JobRunning, job.State)
	bad := jobs.Start(context.Background(), filepath.Join(t.TempDir(), "nope.pgn"))
	jobs.Wait()

	got, ok := jobs.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, JobDone, got.State)
	assert.EqualValues(t, 1, got.Stats.Games)
	assert.False(t, got.Finished.Before(got.Started))

	got, ok = jobs.Get(bad.ID)
	require.True(t, ok)
	assert.Equal(t, JobFailed, got.State)
	assert.NotEmpty(t, got.Error)

	_, ok = jobs.Get(99)
	assert.False(t, ok)
	assert.Len(t, jobs.List(), 2)
}
