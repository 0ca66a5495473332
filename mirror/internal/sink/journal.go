package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/dommirror/mirror/change"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS mirror_changes (
	batch_id     TEXT    NOT NULL,
	session_id   TEXT    NOT NULL,
	document_url TEXT    NOT NULL,
	seq          INTEGER NOT NULL,
	idx          INTEGER NOT NULL,
	op           TEXT    NOT NULL,
	element_id   TEXT    NOT NULL,
	widget_id    TEXT    NOT NULL,
	value        TEXT    NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (batch_id, idx)
);
CREATE INDEX IF NOT EXISTS idx_mirror_changes_session ON mirror_changes(session_id, seq, idx);
`

const journalRetries = 3

// Journal appends every change to an SQLite table, one row per change.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at path. ":memory:"
// gives a private in-memory journal.
func OpenJournal(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Send(ctx context.Context, batch change.Batch) error {
	if len(batch.Changes) == 0 {
		return nil
	}
	return j.runTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO mirror_changes
			(batch_id, session_id, document_url, seq, idx, op, element_id, widget_id, value, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("journal: prepare: %w", err)
		}
		defer stmt.Close()
		for i, c := range batch.Changes {
			if _, err := stmt.ExecContext(ctx, batch.ID, batch.SessionID, batch.DocumentURL,
				batch.Seq, i, string(c.Op), c.ElementID, c.WidgetID, c.Value, batch.Timestamp); err != nil {
				return fmt.Errorf("journal: insert: %w", err)
			}
		}
		return nil
	})
}

// Entry is a journaled change.
type Entry struct {
	BatchID   string `json:"batch_id"`
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	change.Change
	CreatedAt int64 `json:"created_at"`
}

// Changes returns the journaled changes of a session in emission order. An
// empty sessionID returns every session.
func (j *Journal) Changes(ctx context.Context, sessionID string) ([]Entry, error) {
	q := `SELECT batch_id, session_id, seq, op, element_id, widget_id, value, created_at
		FROM mirror_changes`
	var args []any
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY created_at, session_id, seq, idx`

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var op string
		if err := rows.Scan(&e.BatchID, &e.SessionID, &e.Seq, &op, &e.ElementID, &e.WidgetID, &e.Value, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Op = change.Op(op)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error { return j.db.Close() }

// runTx retries on SQLITE_BUSY with 100/200/300 ms backoff.
func (j *Journal) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	var err error
	for i := range journalRetries {
		if err = j.txOnce(ctx, fn); err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("journal: context cancelled during retry: %w", ctx.Err())
		}
	}
	return err
}

func (j *Journal) txOnce(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
