package slogobs

import (
	"log/slog"
	"strings"
)

// LevelTrace sits below Debug and is used for request and response bodies.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps TRACE, DEBUG, INFO, WARN/WARNING and ERROR (any case) to a
// level. The second result is false for unknown input, which yields Info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// LevelFromEnv reads AIGOFLOW_LOG_LEVEL, then LOG_LEVEL. Unset or unknown
// values give Info.
func LevelFromEnv() slog.Level {
	level, _ := ParseLevel(lookupEnv("AIGOFLOW_LOG_LEVEL", "LOG_LEVEL"))
	return level
}

func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

func colorForLevel(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return colorGray
	case level < slog.LevelInfo:
		return colorBlue
	case level < slog.LevelWarn:
		return colorGreen
	case level < slog.LevelError:
		return colorYellow
	default:
		return colorRed
	}
}
