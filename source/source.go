// Package source implements the content source adapters that discover
// candidate posts. Three interchangeable backends exist behind the Adapter
// contract: a structured platform API (reddit), a managed scrape-job service
// (scrapejob), and a headless-browser scrape with heuristic extraction
// (browser). All of them are best-effort: a transport failure yields an
// empty batch for the caller to retry on its own schedule.
package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
)

// MaxBatch is the upper bound on posts returned by a single Fetch call.
const MaxBatch = 25

// Post is one normalized candidate post.
type Post struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Text          string `json:"text"`
	Author        string `json:"author"`
	AuthorBio     string `json:"author_bio,omitempty"`
	URL           string `json:"url"`
	Subreddit     string `json:"subreddit,omitempty"`
	SourceKeyword string `json:"source_keyword,omitempty"`
}

// Fingerprint returns the deduplication identifier for the post.
// It must be deterministic for the same underlying post across polls:
// the platform ID when present, the canonical URL otherwise, and as a
// last resort a truncated hash of the text.
func (p *Post) Fingerprint() string {
	if p.ID != "" {
		return p.ID
	}
	if p.URL != "" {
		return p.URL
	}
	h := sha256.Sum256([]byte(p.Title + "\n" + p.Text))
	return fmt.Sprintf("%x", h[:8])
}

// AuthorURL returns the canonical profile link for the post author,
// synthesized from the handle when the source did not provide one.
func (p *Post) AuthorURL() string {
	if p.Author == "" {
		return ""
	}
	return "https://reddit.com/u/" + p.Author
}

// Query describes one fetch request.
type Query struct {
	// Subreddits is the source scope, joined server-side where supported.
	Subreddits []string
	// Keyword is the query term that surfaces posts, for backends that
	// search rather than list. Recorded on returned posts.
	Keyword string
	// Limit caps the batch size. Zero means MaxBatch.
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > MaxBatch {
		return MaxBatch
	}
	return q.Limit
}

// Adapter fetches a bounded batch of candidate posts.
//
// Implementations must not block past the request context and should
// return an error only for transport-level failures; the caller treats
// any error as an empty batch and decides retry timing itself.
type Adapter interface {
	// Name identifies the backend in logs and status output.
	Name() string
	// PerKeyword reports whether the backend searches per keyword.
	// Listing backends fetch the whole subreddit scope in one call and
	// are invoked once per cycle instead of once per keyword.
	PerKeyword() bool
	// Fetch returns at most MaxBatch posts for the query.
	Fetch(ctx context.Context, q Query) ([]Post, error)
}

// joinScope renders the subreddit scope as a single path segment
// ("golang+startups"). Empty scope falls back to "all".
func joinScope(subs []string) string {
	var kept []string
	for _, s := range subs {
		s = strings.TrimSpace(strings.TrimPrefix(s, "r/"))
		if s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "all"
	}
	return strings.Join(kept, "+")
}
