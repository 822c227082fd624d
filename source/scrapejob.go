package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ScrapeJobConfig configures the managed scrape-service backend.
type ScrapeJobConfig struct {
	// Endpoint is the scrape service base URL.
	Endpoint string
	// APIKey authenticates job submissions. Optional.
	APIKey string
	// PollInterval between job status checks. Default: 2s.
	PollInterval time.Duration
	// MaxAttempts bounds status polling. Default: 30 (~60s ceiling).
	MaxAttempts int
	// Timeout for each individual HTTP call. Default: 15s.
	Timeout time.Duration
}

func (c *ScrapeJobConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 30
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// ScrapeJobAdapter submits a scrape job to an external service and polls
// its status until a terminal state, then fetches the result set.
// Any non-success terminal state yields an empty batch.
type ScrapeJobAdapter struct {
	client *http.Client
	config ScrapeJobConfig
	logger *slog.Logger
	newID  func() string
}

// NewScrapeJobAdapter creates the managed-scrape backend.
func NewScrapeJobAdapter(cfg ScrapeJobConfig, logger *slog.Logger) *ScrapeJobAdapter {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapeJobAdapter{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Name implements Adapter.
func (a *ScrapeJobAdapter) Name() string { return "scrapejob" }

// PerKeyword implements Adapter. Each job searches one keyword.
func (a *ScrapeJobAdapter) PerKeyword() bool { return true }

type jobRequest struct {
	RequestID  string   `json:"request_id"`
	Keyword    string   `json:"keyword"`
	Subreddits []string `json:"subreddits,omitempty"`
	Limit      int      `json:"limit"`
}

type jobStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"` // pending | running | succeeded | failed | cancelled
	Error  string `json:"error,omitempty"`
}

type jobResult struct {
	Posts []Post `json:"posts"`
}

// Fetch submits a job and waits for its result within the attempt budget.
func (a *ScrapeJobAdapter) Fetch(ctx context.Context, q Query) ([]Post, error) {
	job, err := a.submit(ctx, q)
	if err != nil {
		return nil, err
	}
	log := a.logger.With("job_id", job.ID, "keyword", q.Keyword)

	for attempt := 0; attempt < a.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.config.PollInterval):
		}

		status, err := a.status(ctx, job.ID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "succeeded":
			return a.result(ctx, job.ID, q.limit())
		case "failed", "cancelled":
			log.Warn("scrapejob: job did not succeed", "status", status.Status, "error", status.Error)
			return []Post{}, nil
		}
	}

	log.Warn("scrapejob: job still pending after attempt budget", "attempts", a.config.MaxAttempts)
	return []Post{}, nil
}

func (a *ScrapeJobAdapter) submit(ctx context.Context, q Query) (*jobStatus, error) {
	payload, err := json.Marshal(jobRequest{
		RequestID:  a.newID(),
		Keyword:    q.Keyword,
		Subreddits: q.Subreddits,
		Limit:      q.limit(),
	})
	if err != nil {
		return nil, fmt.Errorf("scrapejob: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Endpoint+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("scrapejob: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	var status jobStatus
	if err := a.do(req, &status); err != nil {
		return nil, fmt.Errorf("scrapejob: submit: %w", err)
	}
	if status.ID == "" {
		return nil, fmt.Errorf("scrapejob: submit: no job id in response")
	}
	return &status, nil
}

func (a *ScrapeJobAdapter) status(ctx context.Context, jobID string) (*jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.Endpoint+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("scrapejob: status request: %w", err)
	}
	var status jobStatus
	if err := a.do(req, &status); err != nil {
		return nil, fmt.Errorf("scrapejob: status: %w", err)
	}
	return &status, nil
}

func (a *ScrapeJobAdapter) result(ctx context.Context, jobID string, limit int) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.Endpoint+"/jobs/"+jobID+"/result", nil)
	if err != nil {
		return nil, fmt.Errorf("scrapejob: result request: %w", err)
	}
	var res jobResult
	if err := a.do(req, &res); err != nil {
		return nil, fmt.Errorf("scrapejob: result: %w", err)
	}
	if len(res.Posts) > limit {
		res.Posts = res.Posts[:limit]
	}
	return res.Posts, nil
}

func (a *ScrapeJobAdapter) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return json.Unmarshal(body, out)
}
