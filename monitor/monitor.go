// Package monitor owns the poll/sleep cycle that discovers, filters,
// classifies, and dispatches candidate posts. At most one monitoring task
// runs at a time; a start while running is rejected, not queued.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/dedup"
	"github.com/vkoval/leadscout/dispatch"
	"github.com/vkoval/leadscout/settings"
	"github.com/vkoval/leadscout/source"
)

// Control errors surfaced to the command front end.
var (
	ErrAlreadyRunning = errors.New("monitor: already running")
	ErrNotRunning     = errors.New("monitor: not running")
	ErrNoKeywords     = errors.New("monitor: no keywords configured")
	ErrNoScope        = errors.New("monitor: no subreddits configured")
)

// Config configures the controller.
type Config struct {
	// PollInterval between cycles. Default: 60s. Scraping-heavy backends
	// should run much slower (up to 30m) to match their cost and risk.
	PollInterval time.Duration
	// PostDelay between posts within one cycle, to avoid bursting the
	// classifier and the notification channel. Default: 2s.
	PostDelay time.Duration
	// FetchLimit caps each adapter batch. Default: source.MaxBatch.
	FetchLimit int
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.PostDelay <= 0 {
		c.PostDelay = 2 * time.Second
	}
	if c.FetchLimit <= 0 || c.FetchLimit > source.MaxBatch {
		c.FetchLimit = source.MaxBatch
	}
}

// Controller runs the monitoring task.
type Controller struct {
	adapter    source.Adapter
	classifier classify.Classifier
	dispatcher *dispatch.Dispatcher
	seen       *dedup.Store
	sets       *settings.Manager
	config     Config
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a Controller.
func New(adapter source.Adapter, classifier classify.Classifier, dispatcher *dispatch.Dispatcher,
	seen *dedup.Store, sets *settings.Manager, cfg Config, logger *slog.Logger) *Controller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		adapter:    adapter,
		classifier: classifier,
		dispatcher: dispatcher,
		seen:       seen,
		sets:       sets,
		config:     cfg,
		logger:     logger,
	}
}

// Running reports whether a monitoring task is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SeenCount returns the fingerprint store size, for status output.
func (c *Controller) SeenCount() int { return c.seen.Len() }

// Start launches the monitoring task. It is rejected when keywords or
// scope are missing, or when a task is already running; a rejected start
// has no side effects.
func (c *Controller) Start(parent context.Context) error {
	st := c.sets.Snapshot()
	if len(st.Keywords) == 0 {
		return ErrNoKeywords
	}
	if len(st.Subreddits) == 0 {
		return ErrNoScope
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(ctx)

	c.logger.Info("monitor: started",
		"backend", c.adapter.Name(),
		"subreddits", st.Subreddits,
		"keywords", st.Keywords,
		"poll_interval", c.config.PollInterval)
	return nil
}

// Stop requests cooperative cancellation. The task observes it at its next
// suspension point and exits cleanly, leaving the fingerprint store and
// settings untouched.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.cancel()
	return nil
}

// Wait blocks until the current task exits. No-op when idle.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.running = false
		close(c.done)
		c.mu.Unlock()
		c.logger.Info("monitor: stopped")
	}()

	for {
		c.cycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.config.PollInterval):
		}
	}
}

// cycle runs one fetch → dedup → filter → classify → dispatch pass.
// Any failure inside the cycle is logged and absorbed; only cancellation
// terminates the task.
func (c *Controller) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("monitor: cycle panic", "panic", r)
		}
	}()

	st := c.sets.Snapshot()
	for _, q := range c.queries(st) {
		if ctx.Err() != nil {
			return
		}

		posts, err := c.adapter.Fetch(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Best-effort: an unreachable source is an empty batch this cycle.
			c.logger.Warn("monitor: fetch failed", "backend", c.adapter.Name(), "error", err)
			continue
		}

		for i := range posts {
			if ctx.Err() != nil {
				return
			}
			c.processPost(ctx, &posts[i], st)
		}
	}
}

// queries builds the fetch plan for one cycle: search backends get one
// query per configured keyword, listing backends one query for the scope.
func (c *Controller) queries(st settings.Settings) []source.Query {
	if !c.adapter.PerKeyword() {
		return []source.Query{{Subreddits: st.Subreddits, Limit: c.config.FetchLimit}}
	}
	qs := make([]source.Query, 0, len(st.Keywords))
	for _, kw := range st.Keywords {
		qs = append(qs, source.Query{
			Subreddits: st.Subreddits,
			Keyword:    kw,
			Limit:      c.config.FetchLimit,
		})
	}
	return qs
}

func (c *Controller) processPost(ctx context.Context, post *source.Post, st settings.Settings) {
	fp := post.Fingerprint()
	// Mark on first sight, before any downstream call, so a transient
	// classification failure is not re-processed every cycle.
	if !c.seen.MarkIfNew(fp) {
		return
	}

	if !MatchesKeywords(post, st.Keywords) {
		return
	}

	log := c.logger.With("post_id", fp, "author", post.Author)
	log.Info("monitor: matching post found", "title", classify.Truncate(post.Title, 60))

	verdict, err := c.classifier.Classify(ctx, post, classify.Context{
		Product:  st.YourProduct,
		Seller:   st.YourName,
		Language: st.Language,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("monitor: classification failed, degrading", "error", err)
		verdict = classify.DegradedVerdict("")
	}

	if _, err := c.dispatcher.MaybeDispatch(ctx, post, verdict, st); err != nil {
		log.Warn("monitor: dispatch failed", "error", err)
	}

	// Pace posts within the cycle.
	select {
	case <-ctx.Done():
	case <-time.After(c.config.PostDelay):
	}
}
