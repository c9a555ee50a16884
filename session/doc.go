// Package session houses implementations of core.ThreadStore.
//
// InMemoryStore keeps threads for the lifetime of the process. SQLiteStore
// persists them in a SQLite database file so that threads survive restarts
// and can be replayed later.
package session
