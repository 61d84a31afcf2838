package logging

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

var levelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) log.Level {
	if l, ok := levelMap[name]; ok {
		return l
	}
	return log.LevelInfo
}

type Options struct {
	Level string
	// File, if set, receives JSON records through a rotating writer.
	File    string
	Console io.Writer
}

// Setup installs the default logger: colored console output plus an
// optional rotating JSON file. The returned closer flushes the file.
func Setup(opt Options) io.Closer {
	level := ParseLevel(opt.Level)

	console := opt.Console
	if console == nil {
		console = os.Stdout
	}

	handlers := []log.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}),
	}

	var closer io.Closer = nopCloser{}
	if opt.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		handlers = append(handlers, log.NewJSONHandler(rotator, &log.HandlerOptions{Level: level}))
		closer = rotator
	}

	log.SetDefault(log.New(Fanout(handlers...)))
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fanout []log.Handler

// Fanout sends every record to all handlers that accept its level.
func Fanout(handlers ...log.Handler) log.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, l log.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r log.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []log.Attr) log.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) log.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
