package slogobs

import (
	"io"
	"log/slog"
	"os"
)

type Option func(*config)

type config struct {
	format Format
	level  slog.Level
	output io.Writer
	colors bool
}

func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the destination. Defaults to os.Stderr so command output on
// stdout stays clean.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithColors forces ANSI colors on. Without it colors are used only when the
// output is a terminal.
func WithColors(enabled bool) Option {
	return func(c *config) {
		c.colors = enabled
	}
}

func applyOptions(opts ...Option) *config {
	cfg := &config{
		format: FormatFromEnv(),
		level:  LevelFromEnv(),
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// New returns a logger backed by Handler. Options override the environment.
func New(opts ...Option) *slog.Logger {
	cfg := applyOptions(opts...)
	return slog.New(NewHandler(&HandlerOptions{
		Format: cfg.format,
		Level:  cfg.level,
		Output: cfg.output,
		Colors: cfg.colors,
	}))
}

// Setup builds a logger with New and installs it as slog.Default.
func Setup(opts ...Option) *slog.Logger {
	logger := New(opts...)
	slog.SetDefault(logger)
	return logger
}
