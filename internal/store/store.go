// Package store persists the processed-opportunity history and the
// submission log in a local sqlite database. The history keeps re-runs from
// reprocessing listings, and the submission log seeds the daily quota counter
// across restarts within the same day.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/govcon-responder/internal/opportunity"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS opportunities (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	title TEXT NOT NULL,
	processed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL,
	status TEXT NOT NULL,
	confirmation_id TEXT NOT NULL DEFAULT '',
	retries INTEGER NOT NULL DEFAULT 0,
	submitted_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at
	ON submissions (submitted_at);
`

// Submission is one row of the append-only submission log.
type Submission struct {
	ID             string
	OpportunityID  string
	Status         string
	ConfirmationID string
	Retries        int
	SubmittedAt    time.Time
}

// Store wraps the sqlite handle. Timestamps are stored as unix seconds so
// date-window queries stay exact regardless of timezone formatting.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the database location under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".govcon-responder", "govcon.db"), nil
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. An empty path selects DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		resolved, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// MarkProcessed records that an opportunity went through the pipeline.
// Reprocessing the same listing updates the timestamp.
func (s *Store) MarkProcessed(ctx context.Context, opp *opportunity.Opportunity, processedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO opportunities (id, source, title, processed_at) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT(id) DO UPDATE SET processed_at = excluded.processed_at",
		opp.ID(), opp.Source, opp.Title, processedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("mark opportunity processed: %w", err)
	}
	return nil
}

// SeenIDs returns every opportunity ID ever processed.
func (s *Store) SeenIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM opportunities")
	if err != nil {
		return nil, fmt.Errorf("load processed opportunities: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan opportunity id: %w", err)
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed opportunities: %w", err)
	}

	return seen, nil
}

// RecordSubmission appends one submission attempt outcome.
func (s *Store) RecordSubmission(ctx context.Context, sub *Submission) error {
	if sub.ID == "" {
		return fmt.Errorf("submission id is required")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO submissions (id, opportunity_id, status, confirmation_id, retries, submitted_at) VALUES (?, ?, ?, ?, ?, ?)",
		sub.ID, sub.OpportunityID, sub.Status, sub.ConfirmationID, sub.Retries, sub.SubmittedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// SubmittedToday counts successful submissions within now's calendar day.
func (s *Store) SubmittedToday(ctx context.Context, now time.Time) (int, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24 * time.Hour)

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM submissions WHERE status = 'submitted' AND submitted_at >= ? AND submitted_at < ?",
		start.Unix(), end.Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's submissions: %w", err)
	}

	return count, nil
}

// Submissions returns the log entries for one opportunity, oldest first.
func (s *Store) Submissions(ctx context.Context, opportunityID string) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, opportunity_id, status, confirmation_id, retries, submitted_at FROM submissions WHERE opportunity_id = ? ORDER BY submitted_at",
		opportunityID,
	)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		var (
			sub   Submission
			epoch int64
		)
		if err := rows.Scan(&sub.ID, &sub.OpportunityID, &sub.Status, &sub.ConfirmationID, &sub.Retries, &epoch); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.SubmittedAt = time.Unix(epoch, 0).UTC()
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return subs, nil
}
