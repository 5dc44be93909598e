package slogobs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler used by the Observer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// LevelTrace sits below slog.LevelDebug and is only emitted when explicitly enabled.
const LevelTrace = slog.LevelDebug - 4

// Option is a functional option for configuring the Observer.
type Option func(*config)

type config struct {
	format Format
	level  slog.Level
	output io.Writer
	logger *slog.Logger // If provided, used directly and the other options are ignored
}

// WithFormat sets the log output format.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the output writer for logs.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithLogger uses an existing slog.Logger instead of building a handler.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// ParseLevel maps a configuration string ("trace", "debug", "info", "warn",
// "error") to a slog.Level, defaulting to INFO for anything unrecognized.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat maps a configuration string to a Format, defaulting to text.
func ParseFormat(value string) Format {
	if strings.EqualFold(strings.TrimSpace(value), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

func applyOptions(opts ...Option) *config {
	cfg := &config{
		format: FormatText,
		level:  slog.LevelInfo,
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
