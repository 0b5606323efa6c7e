// Package audit records what this tool did to the stack: reconcile runs,
// explicit field changes, lifecycle verbs. The history answers "when did
// the adapter path last change" long after the terminal scrollback is gone.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the manager.
const (
	ActionReconcile = "reconcile"
	ActionSetField  = "set-field"
	ActionStart     = "start"
	ActionStop      = "stop"
	ActionRestart   = "restart"
	ActionDown      = "down"
	ActionPull      = "pull"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Entry is one recorded action.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Repository stores and queries action history. A nil *SQLiteRepository is
// valid and drops everything, so history stays optional.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// SQLiteRepository persists entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS action_history (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	details    TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_history_created_at
	ON action_history (created_at DESC);
`

// NewSQLiteRepository creates the repository, ensuring the backing table
// exists.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating action_history table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Record inserts an entry. ID and CreatedAt are filled when empty.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	if r == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = "act-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var detailsJSON any
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling action details: %w", err)
		}
		detailsJSON = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO action_history (id, action, details, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Action, detailsJSON, entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting action history: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Entry, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, details, created_at FROM action_history
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying action history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			details sql.NullString
			created string
		)
		if err := rows.Scan(&e.ID, &e.Action, &details, &created); err != nil {
			return nil, fmt.Errorf("scanning action history row: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("decoding action details for %s: %w", e.ID, err)
			}
		}
		ts, err := time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", e.ID, err)
		}
		e.CreatedAt = ts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action history: %w", err)
	}
	return entries, nil
}
