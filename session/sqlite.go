package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/agenthub/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS threads (
	id       TEXT PRIMARY KEY,
	created  TEXT NOT NULL,
	updated  TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS messages (
	thread_id TEXT    NOT NULL REFERENCES threads(id),
	seq       INTEGER NOT NULL,
	body      TEXT    NOT NULL,
	PRIMARY KEY (thread_id, seq)
);`

// SQLiteStore persists threads in a SQLite database. Messages are stored in
// their JSON wire form, one row per message.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.ThreadStore = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (and migrates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: migrate %s: %w", path, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get loads the thread, creating it lazily.
func (s *SQLiteStore) Get(threadID string) (*core.Thread, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	t, err := ensureThread(tx, threadID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(`SELECT body FROM messages WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", threadID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		m, err := core.UnmarshalMessage([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("session: thread %s: %w", threadID, err)
		}
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return t, tx.Commit()
}

// Append commits msgs atomically to the end of the thread.
func (s *SQLiteStore) Append(threadID string, msgs ...core.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := ensureThread(tx, threadID); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE thread_id = ?`, threadID).Scan(&next); err != nil {
		return err
	}

	for i, m := range msgs {
		body, err := core.MarshalMessage(m)
		if err != nil {
			return fmt.Errorf("session: thread %s: %w", threadID, err)
		}
		if _, err := tx.Exec(`INSERT INTO messages (thread_id, seq, body) VALUES (?, ?, ?)`, threadID, next+i, string(body)); err != nil {
			return fmt.Errorf("session: append %s: %w", threadID, err)
		}
	}

	if _, err := tx.Exec(`UPDATE threads SET updated = ? WHERE id = ?`, formatTime(time.Now()), threadID); err != nil {
		return err
	}

	return tx.Commit()
}

// List returns the known thread ids in sorted order.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM threads ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func ensureThread(tx *sql.Tx, threadID string) (*core.Thread, error) {
	var created, updated, metadata string
	err := tx.QueryRow(`SELECT created, updated, metadata FROM threads WHERE id = ?`, threadID).Scan(&created, &updated, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		t := core.NewThread(threadID)
		_, err = tx.Exec(`INSERT INTO threads (id, created, updated, metadata) VALUES (?, ?, ?, '{}')`,
			threadID, formatTime(t.Created), formatTime(t.Updated))
		if err != nil {
			return nil, fmt.Errorf("session: create %s: %w", threadID, err)
		}
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", threadID, err)
	}

	t := core.NewThread(threadID)
	if t.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if t.Updated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return nil, fmt.Errorf("session: thread %s metadata: %w", threadID, err)
	}
	return t, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
