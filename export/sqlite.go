package export

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/dhcgn/vmg-to-imap/model"
)

const schema = `
CREATE TABLE messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	file      TEXT NOT NULL,
	hash      TEXT NOT NULL UNIQUE,
	number    TEXT NOT NULL,
	inbox     INTEGER NOT NULL,
	timestamp TEXT,
	unix      INTEGER,
	body      TEXT NOT NULL
);
CREATE INDEX idx_messages_number ON messages(number, unix);
`

// WriteSQLite stores msgs in a fresh SQLite database at path. Records with
// a hash that is already present are skipped.
func WriteSQLite(path string, msgs []model.Message) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO messages (file, hash, number, inbox, timestamp, unix, body) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		var (
			ts   sql.NullString
			unix sql.NullInt64
		)
		if !msg.Timestamp.IsZero() {
			ts = sql.NullString{String: formatTimestamp(msg.Timestamp), Valid: true}
			unix = sql.NullInt64{Int64: msg.Timestamp.Unix(), Valid: true}
		}
		if _, err := stmt.Exec(msg.ID, msg.Hash, msg.Number, msg.Inbox, ts, unix, msg.Body); err != nil {
			return fmt.Errorf("insert %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
