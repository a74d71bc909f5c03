// Package eventlog subscribes to server.Observer callbacks and persists
// connection and request events to SQLite. It is a collaborator outside the
// simulator core: the core never depends on it, it only depends on the
// core's Observer signature.
package eventlog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"modbus-tcp-sim/internal/server"
)

const schema = `
CREATE TABLE IF NOT EXISTS connections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    accepted_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS request_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    kind TEXT NOT NULL,
    timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_connections_client_id ON connections(client_id);
CREATE INDEX IF NOT EXISTS idx_request_events_client_id ON request_events(client_id);
`

// Log is an Observer-backed audit trail.
type Log struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and migrates
// the event-log schema.
func Open(path string) (*Log, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

// Close releases the underlying SQL connection.
func (l *Log) Close() error { return l.db.Close() }

// Observe implements server.Observer: it is handed directly to server.New.
func (l *Log) Observe(clientID, endpoint string, kind server.EventKind) {
	if kind == server.EventAccepted {
		l.db.Exec(`INSERT INTO connections (client_id, endpoint) VALUES (?, ?)`, clientID, endpoint)
		return
	}
	l.db.Exec(`INSERT INTO request_events (client_id, endpoint, kind) VALUES (?, ?, ?)`, clientID, endpoint, kind.String())
}
