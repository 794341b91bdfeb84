// Package actionlog writes the append-only operation log for vmctl.
//
// Every lifecycle operation records what happened (timestamp, severity,
// message) to a log file under the data directory. The log is write-only
// from the tool's point of view; nothing in vmctl reads it back.
package actionlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LevelSuccess marks operations that completed as requested. It sorts
// between Info and Warn so a logger filtering at Info still records it.
const LevelSuccess = slog.Level(2)

// Options configures the action log.
type Options struct {
	// Path is the append-only log file. Empty disables the file sink,
	// which is useful in tests.
	Path string

	// Level is the minimum level recorded. The zero value is Info.
	Level slog.Level
}

// Log owns the log file and the logger writing to it.
type Log struct {
	logger *slog.Logger
	file   *os.File
}

// Open opens (creating if needed) the append-only action log.
func Open(opts Options) (*Log, error) {
	var w io.Writer = io.Discard
	var f *os.File
	if opts.Path != "" {
		var err error
		f, err = os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open action log: %w", err)
		}
		w = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceLevelName,
	})
	return &Log{logger: slog.New(handler), file: f}, nil
}

// replaceLevelName renders LevelSuccess as SUCCESS instead of INFO+2.
func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelSuccess {
			a.Value = slog.StringValue("SUCCESS")
		}
	}
	return a
}

// Logger returns the structured logger backed by the action log.
// It is safe to call on a nil Log.
func (l *Log) Logger() *slog.Logger {
	if l == nil || l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

// Close closes the underlying log file.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Success records an operation that completed as requested.
func Success(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelSuccess, msg, args...)
}
