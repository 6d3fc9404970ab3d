// Package log configures the process-wide slog logger and carries
// per-session loggers through a context.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Level names accepted in configuration.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format names accepted in configuration.
type Format string

const (
	TextFormat   Format = "text"
	JSONFormat   Format = "json"
	PrettyFormat Format = "pretty"
)

// Mask replaces secrets in logs and printed configuration.
const Mask = "********"

// Config selects the minimum level and the handler.
type Config struct {
	Level  Level  `yaml:"level"`
	Format Format `yaml:"format"`
}

// DefaultConfig logs info and above as plain text.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Format: TextFormat}
}

type ctxKey struct{}

var levels = map[string]slog.Level{
	string(DebugLevel): slog.LevelDebug,
	string(InfoLevel):  slog.LevelInfo,
	string(WarnLevel):  slog.LevelWarn,
	"warning":          slog.LevelWarn,
	string(ErrorLevel): slog.LevelError,
}

// ParseLevel maps a level name onto slog, case-insensitively. Unknown names
// mean info.
func ParseLevel(l Level) slog.Level {
	if level, ok := levels[strings.ToLower(string(l))]; ok {
		return level
	}
	return slog.LevelInfo
}

// Setup installs a logger writing to stderr as the slog default. Stdout is
// left to the interactive shell.
func Setup(cfg Config) *slog.Logger {
	logger := SetupWithOutput(cfg, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// SetupWithOutput builds a logger writing to w without touching the default.
func SetupWithOutput(cfg Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch Format(strings.ToLower(string(cfg.Format))) {
	case JSONFormat:
		handler = slog.NewJSONHandler(w, opts)
	case PrettyFormat:
		handler = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
		})
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the slog default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithSession tags every record with the CLI session id.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With(slog.String("session_id", sessionID))
}

// Redact returns Mask for a non-empty secret and "" otherwise, so an unset
// key stays distinguishable from a set one.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return Mask
}

// Secret is an attribute whose value never reaches the output.
func Secret(key, value string) slog.Attr {
	return slog.String(key, Redact(value))
}

func emit(ctx context.Context, level slog.Level, msg string, args ...any) {
	logger := FromContext(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, args...)
}

func Debug(msg string, args ...any) { emit(context.Background(), slog.LevelDebug, msg, args...) }
func Info(msg string, args ...any) { emit(context.Background(), slog.LevelInfo, msg, args...) }
func Warn(msg string, args ...any) { emit(context.Background(), slog.LevelWarn, msg, args...) }
func Error(msg string, args ...any) { emit(context.Background(), slog.LevelError, msg, args...) }

// The Context variants use the logger carried by ctx.

func DebugContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelDebug, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelInfo, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelWarn, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelError, msg, args...)
}
