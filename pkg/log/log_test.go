package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	fallback := slog.Default()
	scoped := slog.Default().With("execution_id", "exec-1")

	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, scoped, FromContext(WithLogger(context.Background(), scoped), fallback))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHandler(t *testing.T) {
	var out bytes.Buffer

	logger := slog.New(NewHandler(&out, "warn", "json"))
	logger.Info("dropped")
	logger.Warn("kept", "community_id", "community-1")

	assert.NotContains(t, out.String(), "dropped")
	assert.Contains(t, out.String(), `"community_id":"community-1"`)

	out.Reset()
	slog.New(NewHandler(&out, "info", "text")).Info("hello")
	assert.Contains(t, out.String(), "msg=hello")
}
