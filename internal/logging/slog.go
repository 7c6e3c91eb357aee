package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// stdout is the console sink; tests swap it out.
var stdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	logProvider *sdklog.LoggerProvider
	context     ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext makes every record carry the attributes returned by p, such as
// the current rotation id. Call before Setup.
func (m *SlogManager) WithContext(p ContextProvider) *SlogManager {
	m.context = p
	return m
}

// Setup initializes the logging system. Records go to file when one is
// given, otherwise to stdout. If provider is nil, OTel logging is disabled.
// Extra handlers, such as the Graylog one, receive every record too.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	lvl := parseLevel(level)
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stdout, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("warfare", otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, extra...)

	var h slog.Handler = NewMultiHandler(handlers...)
	if m.context != nil {
		h = NewContextHandler(h, m.context)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a message sent by the host, tagged with the script
// source that produced it.
func (m *SlogManager) WriteLog(source, data, level string) {
	if m.logger == nil {
		return
	}

	switch parseLevel(level) {
	case slog.LevelDebug:
		m.logger.Debug(data, "source", source)
	case slog.LevelWarn:
		m.logger.Warn(data, "source", source)
	case slog.LevelError:
		m.logger.Error(data, "source", source)
	default:
		m.logger.Info(data, "source", source)
	}
}
