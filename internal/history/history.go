// Package history keeps a journal of lifecycle operations in a local
// SQLite database. The journal is informational only: the registry file
// remains the source of truth for which projects exist.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Outcome of a recorded operation
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Event is one journal entry
type Event struct {
	ID        int64
	ProjectID string
	Action    string
	Outcome   string
	Detail    string
	At        time.Time
}

// Journal records lifecycle events
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &Journal{db: db}

	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return j, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

// initSchema creates the events table if it doesn't exist
func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_project ON events(project_id);
	`

	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Record appends an event
func (j *Journal) Record(ctx context.Context, projectID, action, outcome, detail string) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO events (project_id, action, outcome, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		projectID, action, outcome, detail, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first. An empty projectID lists
// every project; limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, projectID string, limit int) ([]Event, error) {
	query := "SELECT id, project_id, action, outcome, detail, created_at FROM events"
	var args []interface{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Action, &e.Outcome, &e.Detail, &at); err != nil {
			return nil, err
		}
		e.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("event %d has invalid timestamp %q: %w", e.ID, at, err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
