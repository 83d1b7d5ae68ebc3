// Package logging provides structured logging for the messenger client.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// levelNames maps accepted configuration strings to slog levels.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel converts a configuration string to its slog.Level, falling
// back to info for unrecognized input.
func parseLevel(level string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// NewLogger creates a structured logger on os.Stderr with the given
// level (debug, info, warn, error) and format (text, json).
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Common attribute keys for consistent logging across the messenger.
const (
	KeyIdentity  = "identity"
	KeyRecipient = "recipient"
	KeyMessageID = "message_id"
	KeyChunk     = "chunk_index"
	KeyChunks    = "total_chunks"
	KeySignature = "signature"
	KeyRegistry  = "registry_address"
	KeyComponent = "component"
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyAttempt   = "attempt"
)
