package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(&filteringHandler{underlying: slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
}

func TestSectionFiltering(t *testing.T) {
	EnableSections("optimize")
	t.Cleanup(func() { EnableSections("check", "optimize") })

	buf := &bytes.Buffer{}
	logger := testLogger(buf)

	logger.With("section", "optimize.dce").Debug("kept")
	logger.With("section", "parser").Debug("dropped")
	logger.Debug("inline section", "section", "optimize")
	logger.With("section", "parser").Warn("warnings always pass")

	out := buf.String()
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "inline section")
	assert.Contains(t, out, "warnings always pass")
	assert.NotContains(t, out, "dropped")
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(slog.LevelError) })

	SetLevel(slog.LevelDebug)
	assert.True(t, DefaultLogger.Enabled(context.Background(), slog.LevelDebug))
	SetLevel(slog.LevelError)
	assert.False(t, DefaultLogger.Enabled(context.Background(), slog.LevelWarn))
}
