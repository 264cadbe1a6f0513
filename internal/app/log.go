package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// dsHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
type dsHandler struct {
	w     io.Writer
	runID string
	attrs []slog.Attr
}

func (h *dsHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *dsHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.runID, r.Message)
	if err != nil {
		return err
	}

	// Write pre-set attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *dsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dsHandler{
		w:     h.w,
		runID: h.runID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *dsHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both a rotated
// logDir/docsync.log and stderr. It returns the slog.Logger and a closer
// for the rotated file.
func newLogger(logDir string, runID string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "docsync.log"),
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
	}

	w := io.MultiWriter(rotated, os.Stderr)
	handler := &dsHandler{w: w, runID: runID}
	return slog.New(handler), rotated, nil
}

// slogAdapter wraps *slog.Logger to satisfy the engine.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
