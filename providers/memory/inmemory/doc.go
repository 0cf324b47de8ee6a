// Package inmemory keeps checkpoints in process memory. Stored state is deep
// copied on the way in and out, so callers can never alias it.
package inmemory
