package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures the headless-browser backend.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string
	// SearchURL is the page template; %s receives the escaped keyword.
	// Default: the platform search page.
	SearchURL string
	// Scrolls is how many times to scroll to trigger lazy-loaded content.
	// Default: 5.
	Scrolls int
	// ScrollPause between scrolls. Default: 1s.
	ScrollPause time.Duration
	// NavTimeout bounds navigation and page load. Default: 30s.
	NavTimeout time.Duration
}

func (c *BrowserConfig) defaults() {
	if c.SearchURL == "" {
		c.SearchURL = "https://www.reddit.com/search/?q=%s&sort=new"
	}
	if c.Scrolls <= 0 {
		c.Scrolls = 5
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = time.Second
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
}

// BrowserAdapter renders the target page in headless Chrome, scrolls to
// trigger lazy loading, captures the markup, and hands it to the Extractor.
// Inherently unstable against upstream markup changes; explicitly best-effort.
type BrowserAdapter struct {
	config    BrowserConfig
	logger    *slog.Logger
	extractor *Extractor

	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewBrowserAdapter creates the headless-browser backend. Call Start before
// Fetch and Close when done.
func NewBrowserAdapter(cfg BrowserConfig, logger *slog.Logger) *BrowserAdapter {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserAdapter{
		config:    cfg,
		logger:    logger,
		extractor: NewExtractor(),
	}
}

// Name implements Adapter.
func (a *BrowserAdapter) Name() string { return "browser" }

// PerKeyword implements Adapter. Each rendered search page covers one keyword.
func (a *BrowserAdapter) PerKeyword() bool { return true }

// Start launches Chrome (or connects to a remote instance).
func (a *BrowserAdapter) Start(ctx context.Context) error {
	var wsURL string
	if a.config.RemoteURL != "" {
		wsURL = a.config.RemoteURL
		a.logger.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		a.lnch = l
		a.logger.Info("browser: launched local chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	a.browser = b
	return nil
}

// Close shuts down Chrome.
func (a *BrowserAdapter) Close() error {
	if a.browser != nil {
		a.browser.Close()
		a.browser = nil
	}
	if a.lnch != nil {
		a.lnch.Cleanup()
		a.lnch = nil
	}
	return nil
}

// Fetch renders the search page for the query keyword and extracts posts.
func (a *BrowserAdapter) Fetch(ctx context.Context, q Query) ([]Post, error) {
	if a.browser == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	pageURL := fmt.Sprintf(a.config.SearchURL, url.QueryEscape(q.Keyword))
	log := a.logger.With("url", pageURL, "keyword", q.Keyword)

	page, err := stealth.Page(a.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, a.config.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "error", err)
	}

	// Scroll a fixed number of times to trigger lazy-loaded content.
	for i := 0; i < a.config.Scrolls; i++ {
		if _, err := page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			log.Debug("browser: scroll failed", "scroll", i, "error", err)
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.config.ScrollPause):
		}
	}

	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: capture markup: %w", err)
	}
	markup := []byte(res.Value.Str())

	posts := a.extractor.ExtractPosts(markup, q.Keyword)
	if len(posts) > q.limit() {
		posts = posts[:q.limit()]
	}
	log.Debug("browser: extracted", "markup_bytes", len(markup), "posts", len(posts))
	return posts, nil
}
