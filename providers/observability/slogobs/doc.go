// Package slogobs builds the process-wide *slog.Logger: a handler with
// compact, pretty and JSON output whose level and format can be set from the
// environment.
package slogobs
