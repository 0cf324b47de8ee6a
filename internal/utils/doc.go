// Package utils provides small shared helpers: HTTP GET round-trips for the
// tool integrations, body cleanup with logging, pointer and string helpers.
package utils
