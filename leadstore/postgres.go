package leadstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
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
    dispatched_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_time ON leads(dispatched_at DESC);
`

// PostgresStore keeps lead history in PostgreSQL. Selected when
// DATABASE_URL is set, for deployments that outlive a single host.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("leadstore: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("leadstore: apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// SaveLead implements Store.
func (s *PostgresStore) SaveLead(ctx context.Context, lead *Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.DispatchedAt.IsZero() {
		lead.DispatchedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, post_id, subreddit, author, title, url, score,
		summary, outreach_message, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		lead.ID, lead.PostID, lead.Subreddit, lead.Author, lead.Title, lead.URL,
		lead.Score, lead.Summary, lead.OutreachMessage, lead.DispatchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("leadstore: insert lead: %w", err)
	}
	return nil
}

// RecentLeads implements Store.
func (s *PostgresStore) RecentLeads(ctx context.Context, limit int) ([]*Lead, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, post_id, subreddit, author, title, url, score,
		summary, outreach_message, dispatched_at
		FROM leads ORDER BY dispatched_at DESC LIMIT $1`, limit)
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
func (s *PostgresStore) CountLeads(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count)
	return count, err
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
