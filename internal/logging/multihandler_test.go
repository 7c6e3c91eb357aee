package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	slog.Handler
}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("graylog down") }

func textHandler(buf *bytes.Buffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
}

func TestMultiHandler_FansOutToEnabled(t *testing.T) {
	var file, graylog bytes.Buffer
	multi := NewMultiHandler(nil, textHandler(&file, slog.LevelDebug), textHandler(&graylog, slog.LevelWarn))
	require.Len(t, multi.handlers, 2)

	logger := slog.New(multi)
	logger.Debug("presence changed")
	logger.Warn("path too short")

	assert.Contains(t, file.String(), "presence changed")
	assert.Contains(t, file.String(), "path too short")
	assert.NotContains(t, graylog.String(), "presence changed")
	assert.Contains(t, graylog.String(), "path too short")
}

func TestMultiHandler_Enabled(t *testing.T) {
	ctx := context.Background()
	info := textHandler(&bytes.Buffer{}, slog.LevelInfo)
	debug := textHandler(&bytes.Buffer{}, slog.LevelDebug)

	assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelError))
	assert.False(t, NewMultiHandler(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, NewMultiHandler(info, debug).Enabled(ctx, slog.LevelDebug))
}

func TestMultiHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(textHandler(&buf, slog.LevelInfo))

	assert.Same(t, multi, multi.WithGroup(""))

	logger := slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "flags")}).WithGroup("flag"))
	logger.Info("captured", "name", "Kavala")

	assert.Contains(t, buf.String(), "component=flags")
	assert.Contains(t, buf.String(), "flag.name=Kavala")
}

func TestMultiHandler_FailureDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(failingHandler{}, textHandler(&buf, slog.LevelInfo))

	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "rotation won", 0))
	assert.ErrorContains(t, err, "graylog down")
	assert.Contains(t, buf.String(), "rotation won")
}
