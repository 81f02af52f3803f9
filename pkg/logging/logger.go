// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for MockSRE components.
//
// The logger is built on log/slog. Console output is colourised with tint
// when the destination is a terminal and falls back to JSON otherwise, so
// the same binary reads well in a shell and in a log pipeline.
//
// # Architecture
//
//	┌──────────────────────────────────────────────┐
//	│                    Logger                    │
//	│  ┌──────────────────┐  ┌──────────────────┐  │
//	│  │ console (tint or │  │  log file (JSON, │  │
//	│  │  JSON, default)  │  │    optional)     │  │
//	│  └──────────────────┘  └──────────────────┘  │
//	│            fan-out via slog-multi            │
//	└──────────────────────────────────────────────┘
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "mocksre"})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// # Thread Safety
//
// Logger is safe for concurrent use. The underlying slog handlers are
// thread-safe and Close is guarded by a mutex.
//
// # Security Considerations
//
// This package does NOT redact anything. Profile emails must not be logged
// at Info or above.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages such as mode changes.
	LevelInfo

	// LevelWarn is for recoverable surprises.
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
//
// # Inputs
//
//   - s: One of "debug", "info", "warn", "warning", "error". Empty means info.
//
// # Outputs
//
//   - Level: The parsed level.
//   - error: Non-nil when s is not a known level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// =============================================================================
// Output Format
// =============================================================================

// Format selects how console records are rendered.
type Format string

const (
	// FormatAuto renders with tint on a terminal and JSON otherwise.
	FormatAuto Format = "auto"

	// FormatText always renders with tint. Colour is disabled off-terminal.
	FormatText Format = "text"

	// FormatJSON always renders JSON.
	FormatJSON Format = "json"
)

// ParseFormat converts "auto", "text" or "json" into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatAuto, fmt.Errorf("unknown log format %q", s)
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the Logger.
//
// A zero-value Config writes Info+ records to stderr using FormatAuto.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// Format selects console rendering. Default: FormatAuto.
	Format Format

	// Service is attached to every record as the "service" attribute.
	Service string

	// LogDir enables an additional JSON log file named
	// "{Service}_{YYYY-MM-DD}.log". Supports ~ expansion.
	LogDir string

	// Quiet disables console output. File output is unaffected.
	Quiet bool

	// Writer overrides the console destination. Default: os.Stderr.
	Writer io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger owns the slog handler chain and any open log file.
//
// Always call Close when LogDir is set so the file is synced.
type Logger struct {
	slog *slog.Logger
	file *os.File
	mu   sync.Mutex
}

// New creates a Logger from the given configuration.
//
// # Description
//
// Builds the console handler (unless Quiet), an optional JSON file handler,
// and fans them out with slog-multi. A log directory that cannot be created
// is skipped silently and the console handler is kept.
//
// # Inputs
//
//   - config: Logger configuration.
//
// # Outputs
//
//   - *Logger: Ready-to-use logger.
//
// # Examples
//
//	logger := logging.New(logging.Config{Level: logging.LevelDebug, Format: logging.FormatJSON})
//	logger.Slog().Info("listening", "port", 8000)
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}
	w := config.Writer
	if w == nil {
		w = os.Stderr
	}

	var handlers []slog.Handler
	if !config.Quiet {
		handlers = append(handlers, consoleHandler(w, config.Format, opts))
	}

	logger := &Logger{}
	if config.LogDir != "" {
		if file := openLogFile(config.LogDir, config.Service); file != nil {
			logger.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewJSONHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = slogmulti.Fanout(handlers...)
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level stderr logger for the "mocksre" service.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "mocksre"})
}

// Slog returns the underlying *slog.Logger. Components accept this type.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// With returns a child logger sharing the same destinations.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// Close syncs and closes the log file, if any. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func consoleHandler(w io.Writer, format Format, opts *slog.HandlerOptions) slog.Handler {
	tty := isTerminal(w)
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	case FormatText:
		return tint.NewHandler(w, &tint.Options{Level: opts.Level, TimeFormat: time.TimeOnly, NoColor: !tty})
	default:
		if tty {
			return tint.NewHandler(w, &tint.Options{Level: opts.Level, TimeFormat: time.TimeOnly})
		}
		return slog.NewJSONHandler(w, opts)
	}
}

// isTerminal reports whether w is an *os.File attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func openLogFile(dir, service string) *os.File {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "mocksre"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
