// Package memory defines checkpoint storage for threaded workflows.
//
// A thread is an ordered list of [Checkpoint] values, each holding a JSON
// snapshot of workflow state. The chat agent stores its message history this
// way and the refinement loop stores a snapshot per transition, so both can
// pick a thread up again after a restart.
//
// Implementations live in the sub-packages: inmemory for tests and
// short-lived processes, sqlitememory for a local database file, and
// pgmemory for PostgreSQL.
package memory
