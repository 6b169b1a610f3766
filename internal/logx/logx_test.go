package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/pgndb/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, config.LogConfig{Level: "warn", JSON: true})
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("file", "a.pgn").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "a.pgn", line["file"])
	assert.Equal(t, "warn", line["level"])
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, config.LogConfig{})
	require.NoError(t, err)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "logx_test.go")
}

func TestNewBadLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, config.LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestShortCaller(t *testing.T) {
	got := shortCaller(0, "/a/b/c/file.go", 12)
	assert.Len(t, got, 28)
	assert.Equal(t, "file.go:12", got[:10])
}
