// Copyright 2026 The Steward Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs in JSON format for machine parsing.
	FormatJSON Format = "json"
	// FormatText outputs logs in human-readable text format.
	FormatText Format = "text"
)

// Standard field keys for structured logging.
// These constants ensure consistent field naming across the codebase.
const (
	// ServiceKey is the field key for the supervised service group.
	ServiceKey = "service"
	// HookKey is the field key for lifecycle hook names.
	HookKey = "hook"
	// IncarnationKey is the field key for configuration incarnations.
	IncarnationKey = "incarnation"
	// DurationKey is the field key for duration in milliseconds.
	DurationKey = "duration_ms"
	// EventKey is the field key for event types.
	EventKey = "event"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Default: info
	Level string

	// Format sets the output format (json, text).
	// Default: json
	Format Format

	// Output is the writer for log output. When set it takes precedence
	// over File.
	// Default: os.Stderr
	Output io.Writer

	// File, when non-empty, sends log output to a rotating file instead
	// of stderr.
	File string

	// MaxSizeMB is the size in megabytes at which the log file is
	// rotated. Default: 50
	MaxSizeMB int

	// MaxBackups is the number of rotated files to retain. Default: 5
	MaxBackups int

	// AddSource adds source file and line information to logs.
	// Default: false
	AddSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     FormatJSON,
		Output:     os.Stderr,
		MaxSizeMB:  50,
		MaxBackups: 5,
	}
}

// FromEnv creates a Config from environment variables.
// Supported environment variables:
//   - STEWARD_DEBUG: true/1 to enable debug level and source logging (takes precedence)
//   - STEWARD_LOG_LEVEL: debug, info, warn, error (takes precedence over LOG_LEVEL)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - STEWARD_LOG_FORMAT: json, text (takes precedence over LOG_FORMAT)
//   - LOG_FORMAT: json, text (default: json)
//   - LOG_SOURCE: 1 to enable source file/line (default: 0)
func FromEnv() *Config {
	cfg := DefaultConfig()

	debug := os.Getenv("STEWARD_DEBUG")
	if debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}

	// STEWARD_LOG_LEVEL takes precedence over LOG_LEVEL (but not STEWARD_DEBUG)
	if debug == "" {
		if level := os.Getenv("STEWARD_LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		} else if level := os.Getenv("LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		}
	}

	if format := os.Getenv("STEWARD_LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	} else if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}

	if os.Getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}

	return cfg
}

// New creates a new structured logger from the given configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.writer(), opts)
	case FormatJSON:
		fallthrough
	default:
		handler = slog.NewJSONHandler(cfg.writer(), opts)
	}

	return slog.New(handler)
}

// writer selects the log destination. An explicit Output wins, then a
// rotating file, then stderr.
func (c *Config) writer() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	if c.File != "" {
		return &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			Compress:   true,
		}
	}
	return os.Stderr
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a new logger with a component name field.
// Component names help identify which part of the system generated the log.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithService returns a new logger scoped to a supervised service group.
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(slog.String(ServiceKey, service))
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value int64) slog.Attr {
	return slog.Int64(key+"_ms", value)
}
