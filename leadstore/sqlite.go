package leadstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Schema is the lead history schema.
const Schema = `
CREATE TABLE IF NOT EXISTS leads (
    id               TEXT PRIMARY KEY,
    post_id          TEXT NOT NULL,
    subreddit        TEXT NOT NULL DEFAULT '',
    author           TEXT NOT NULL DEFAULT '',
    title            TEXT NOT NULL DEFAULT '',
    url              TEXT NOT NULL DEFAULT '',
    score            INTEGER NOT NULL DEFAULT 0,
    summary          TEXT NOT NULL DEFAULT '',
    outreach_message TEXT NOT NULL DEFAULT '',
    dispatched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_time ON leads(dispatched_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_post ON leads(post_id);
`

// SQLiteStore keeps lead history in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the lead database and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("leadstore: open %s: %w", path, err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA foreign_keys=ON")
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("leadstore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveLead implements Store.
func (s *SQLiteStore) SaveLead(ctx context.Context, lead *Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.DispatchedAt.IsZero() {
		lead.DispatchedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, post_id, subreddit, author, title, url, score,
		summary, outreach_message, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.PostID, lead.Subreddit, lead.Author, lead.Title, lead.URL,
		lead.Score, lead.Summary, lead.OutreachMessage, lead.DispatchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("leadstore: insert lead: %w", err)
	}
	return nil
}

// RecentLeads implements Store.
func (s *SQLiteStore) RecentLeads(ctx context.Context, limit int) ([]*Lead, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, subreddit, author, title, url, score,
		summary, outreach_message, dispatched_at
		FROM leads ORDER BY dispatched_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leadstore: query leads: %w", err)
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		var l Lead
		var ts int64
		if err := rows.Scan(&l.ID, &l.PostID, &l.Subreddit, &l.Author, &l.Title,
			&l.URL, &l.Score, &l.Summary, &l.OutreachMessage, &ts); err != nil {
			return nil, fmt.Errorf("leadstore: scan lead: %w", err)
		}
		l.DispatchedAt = time.UnixMilli(ts)
		leads = append(leads, &l)
	}
	return leads, rows.Err()
}

// CountLeads implements Store.
func (s *SQLiteStore) CountLeads(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count)
	return count, err
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
