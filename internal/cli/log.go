// Package cli implements the lockmirror command-line interface.
//
// The CLI is a thin layer over package pipeline: it reads the lockfile,
// resolves settings from flags and the optional config file, runs an update
// or check, and writes the result atomically.
//
// # Commands
//
//   - update: rewrite a lockfile to download from a registry mirror
//   - check: verify that a lockfile downloads only from a registry
//   - completion: generate shell completion scripts
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// logs every registry request and manifest cache event. Loggers are passed
// through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lockmirror/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Update complete (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Verbose Hooks
// =============================================================================

// logHTTPHooks debug-logs registry traffic.
type logHTTPHooks struct {
	logger *log.Logger
}

func (h *logHTTPHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("request", "method", method, "host", host, "path", path)
}

func (h *logHTTPHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *logHTTPHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("request failed", "method", method, "host", host, "path", path, "err", err)
}

// logCacheHooks debug-logs manifest cache activity.
type logCacheHooks struct {
	observability.NoopCacheHooks
	logger *log.Logger
}

func (h *logCacheHooks) OnCacheMiss(_ context.Context, key string) {
	h.logger.Debug("manifest cache miss", "package", key)
}

func (h *logCacheHooks) OnCacheSet(_ context.Context, key string, versions int) {
	h.logger.Debug("cached manifest", "package", key, "versions", versions)
}
