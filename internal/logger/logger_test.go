package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestNewWritesServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Service: "storefront", Env: "test", Level: "info", Output: &buf})

	log.Info("hello", slog.String("k", "v"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "storefront", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "v", line["k"])
}
