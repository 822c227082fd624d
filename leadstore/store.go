// Package leadstore records dispatched leads for later review. The history
// is observability, not delivery state: deduplication stays in memory and
// a lost database never blocks a notification.
package leadstore

import (
	"context"
	"time"
)

// Lead is one dispatched lead.
type Lead struct {
	ID              string    `json:"id"`
	PostID          string    `json:"post_id"`
	Subreddit       string    `json:"subreddit"`
	Author          string    `json:"author"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Score           int       `json:"score"`
	Summary         string    `json:"summary"`
	OutreachMessage string    `json:"outreach_message"`
	DispatchedAt    time.Time `json:"dispatched_at"`
}

// Store persists dispatched leads.
type Store interface {
	SaveLead(ctx context.Context, lead *Lead) error
	RecentLeads(ctx context.Context, limit int) ([]*Lead, error)
	CountLeads(ctx context.Context) (int, error)
	Close() error
}

// NopStore discards everything. Used when persistence is disabled.
type NopStore struct{}

// SaveLead implements Store.
func (NopStore) SaveLead(context.Context, *Lead) error { return nil }

// RecentLeads implements Store.
func (NopStore) RecentLeads(context.Context, int) ([]*Lead, error) { return nil, nil }

// CountLeads implements Store.
func (NopStore) CountLeads(context.Context) (int, error) { return 0, nil }

// Close implements Store.
func (NopStore) Close() error { return nil }
