// Package sqlitememory stores checkpoints in a SQLite database through the
// pure-Go modernc.org/sqlite driver, so no cgo toolchain is needed.
//
//	saver, err := sqlitememory.Open("chatbot.db")
//	if err != nil { ... }
//	defer saver.Close()
//
// The path ":memory:" opens a private in-memory database.
package sqlitememory
