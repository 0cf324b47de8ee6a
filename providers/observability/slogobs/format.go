package slogobs

import (
	"os"
	"strings"
)

// Format is the output layout of the handler.
type Format string

const (
	// FormatCompact prints one line per record with attributes as JSON.
	//
	//	2026-10-19 10:40:35  INFO refine transition → {"from":"generated","to":"evaluated"}
	FormatCompact Format = "compact"

	// FormatPretty prints attributes on their own indented lines.
	FormatPretty Format = "pretty"

	// FormatJSON prints one JSON object per record.
	FormatJSON Format = "json"
)

// ParseFormat maps a case-insensitive name to a Format, FormatCompact for
// anything unknown.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPretty:
		return FormatPretty
	case FormatJSON:
		return FormatJSON
	default:
		return FormatCompact
	}
}

// FormatFromEnv reads AIGOFLOW_LOG_FORMAT, then LOG_FORMAT.
func FormatFromEnv() Format {
	return ParseFormat(lookupEnv("AIGOFLOW_LOG_FORMAT", "LOG_FORMAT"))
}

func (f Format) String() string {
	return string(f)
}

// lookupEnv returns the first non-empty variable among keys.
func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
