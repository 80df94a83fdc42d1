// Package pending implements the durable at-least-once mailbox for
// identities that have no open channel when a notification is produced.
package pending

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pending_notifications (
	id           TEXT PRIMARY KEY,
	identity     TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	message      TEXT NOT NULL DEFAULT '',
	type         TEXT NOT NULL DEFAULT '',
	priority     TEXT NOT NULL DEFAULT '',
	task_id      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	delivered    INTEGER NOT NULL DEFAULT 0,
	delivered_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_pending_identity ON pending_notifications(identity, delivered);
`

// DB wraps a sql.DB with mailbox-specific operations.
//
// The fetch-and-mark cycle is a read-then-write critical section: it runs
// under a per-identity lock so two concurrent fetches for the same identity
// cannot both observe a record as undelivered.
type DB struct {
	conn *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens (or creates) the SQLite database and applies the schema.
// The dsn may already carry driver parameters; the mailbox pragmas are
// appended to whatever is there.
func Open(dsn string) (*DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("pending: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pending: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pending: apply schema: %w", err)
	}
	return &DB{
		conn:  conn,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// identityLock returns the lock guarding fetch/mark for one identity.
func (db *DB) identityLock(identity string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		db.locks[identity] = l
	}
	return l
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
