package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RedditConfig configures the structured-API backend.
type RedditConfig struct {
	// BaseURL of the listing API. Default: https://www.reddit.com.
	BaseURL string
	// Timeout for one listing request. Default: 15s.
	Timeout time.Duration
	// UserAgent sent with requests. Reddit rejects blank agents.
	UserAgent string
}

func (c *RedditConfig) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.reddit.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "leadscout/1.0"
	}
}

// RedditAdapter queries the platform's native listing API, filtered
// server-side by the subscribed subreddits.
type RedditAdapter struct {
	client *http.Client
	config RedditConfig
	logger *slog.Logger
}

// NewRedditAdapter creates the structured-API backend.
func NewRedditAdapter(cfg RedditConfig, logger *slog.Logger) *RedditAdapter {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &RedditAdapter{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// Name implements Adapter.
func (a *RedditAdapter) Name() string { return "reddit" }

// PerKeyword implements Adapter. The listing API filters server-side by
// subreddit scope; keyword matching happens downstream.
func (a *RedditAdapter) PerKeyword() bool { return false }

// listing mirrors the subset of the Reddit listing envelope we consume.
type listing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SelfText  string `json:"selftext"`
	Author    string `json:"author"`
	Subreddit string `json:"subreddit"`
	Permalink string `json:"permalink"`
	URL       string `json:"url"`
}

// Fetch lists the newest posts across the query's subreddit scope.
func (a *RedditAdapter) Fetch(ctx context.Context, q Query) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%s",
		a.config.BaseURL, url.PathEscape(joinScope(q.Subreddits)), strconv.Itoa(q.limit()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit: new request: %w", err)
	}
	req.Header.Set("User-Agent", a.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit: get listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("reddit: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reddit: read body: %w", err)
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("reddit: parse listing: %w", err)
	}

	posts := make([]Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		rp := child.Data
		p := Post{
			ID:            rp.ID,
			Title:         rp.Title,
			Text:          rp.SelfText,
			Author:        rp.Author,
			Subreddit:     rp.Subreddit,
			URL:           rp.URL,
			SourceKeyword: q.Keyword,
		}
		if p.URL == "" && rp.Permalink != "" {
			p.URL = "https://reddit.com" + rp.Permalink
		}
		posts = append(posts, p)
		if len(posts) >= q.limit() {
			break
		}
	}

	a.logger.Debug("reddit: fetched", "scope", joinScope(q.Subreddits), "posts", len(posts))
	return posts, nil
}
