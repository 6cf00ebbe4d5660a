package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeHandler_FansOut(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	tee := NewTeeHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)
	logger := slog.New(tee)

	logger.Info("nginx conf generated", "path", "/bootstrap/generated/seafile.nginx.conf")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		assert.Contains(t, buf.String(), "nginx conf generated")
		assert.Contains(t, buf.String(), "seafile.nginx.conf")
	}
}

func TestTeeHandler_RespectsChildLevels(t *testing.T) {
	t.Parallel()

	var debugBuf, infoBuf bytes.Buffer
	tee := NewTeeHandler(
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)

	require.True(t, tee.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(tee)
	logger.Debug("probing mysql")

	assert.Contains(t, debugBuf.String(), "probing mysql")
	assert.Empty(t, infoBuf.String())
}

func TestTeeHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tee := NewTeeHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(tee).With("phase", "letsencrypt")

	logger.Info("certificate issued")

	assert.Contains(t, buf.String(), `"phase":"letsencrypt"`)
}
