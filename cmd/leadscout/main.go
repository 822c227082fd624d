// Command leadscout runs the lead discovery pipeline: it polls a post
// source, filters and classifies candidates, and delivers accepted leads
// to the operator's Telegram chat.
//
// Usage:
//
//	leadscout -config leadscout.yaml
//
// Secrets come from the environment (or a .env file next to the binary):
// TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, GEMINI_API_KEY and optionally
// DATABASE_URL for Postgres-backed lead history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vkoval/leadscout/admin"
	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/config"
	"github.com/vkoval/leadscout/dedup"
	"github.com/vkoval/leadscout/dispatch"
	"github.com/vkoval/leadscout/leadstore"
	"github.com/vkoval/leadscout/monitor"
	"github.com/vkoval/leadscout/settings"
	"github.com/vkoval/leadscout/source"
	"github.com/vkoval/leadscout/telegram"
)

func main() {
	configPath := flag.String("config", "leadscout.yaml", "path to leadscout.yaml config file")
	settingsPath := flag.String("settings", "", "override the operator settings path from the config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	// Best-effort: missing .env just means the environment is already set.
	_ = godotenv.Load()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *settingsPath); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("leadscout: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, settingsPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if settingsPath != "" {
		cfg.SettingsPath = settingsPath
	}

	sets, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	adapter, cleanup, err := buildAdapter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	classifier, err := buildClassifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	leads, err := buildLeadStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer leads.Close()

	bot, err := buildBot(sets, classifier, logger)
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(bot, leads, logger)
	controller := monitor.New(adapter, classifier, dispatcher, dedup.NewStore(), sets, monitor.Config{
		PollInterval: cfg.PollInterval,
		PostDelay:    cfg.PostDelay,
		FetchLimit:   cfg.FetchLimit,
	}, logger)
	bot.Attach(controller)

	errCh := make(chan error, 2)
	go func() { errCh <- bot.Run(ctx) }()

	if cfg.Admin.Listen != "" {
		srv := admin.New(cfg.Admin.Listen, controller, sets, leads, logger)
		go func() { errCh <- srv.Run(ctx) }()
	}

	logger.Info("leadscout: running", "backend", adapter.Name(), "config", configPath)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	// Drain the monitoring task before exit so in-flight posts finish.
	if err := controller.Stop(); err == nil {
		controller.Wait()
	}
	return ctx.Err()
}

func buildAdapter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (source.Adapter, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendReddit:
		return source.NewRedditAdapter(source.RedditConfig{
			BaseURL:   cfg.Reddit.BaseURL,
			UserAgent: cfg.Reddit.UserAgent,
		}, logger), noop, nil

	case config.BackendScrapeJob:
		return source.NewScrapeJobAdapter(source.ScrapeJobConfig{
			Endpoint:     cfg.ScrapeJob.Endpoint,
			APIKey:       os.Getenv("SCRAPE_API_KEY"),
			PollInterval: cfg.ScrapeJob.PollInterval,
			MaxAttempts:  cfg.ScrapeJob.MaxAttempts,
		}, logger), noop, nil

	case config.BackendBrowser:
		a := source.NewBrowserAdapter(source.BrowserConfig{
			RemoteURL:   cfg.Browser.Remote,
			SearchURL:   cfg.Browser.SearchURL,
			Scrolls:     cfg.Browser.Scrolls,
			ScrollPause: cfg.Browser.ScrollPause,
			NavTimeout:  cfg.Browser.NavTimeout,
		}, logger)
		if err := a.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("start browser: %w", err)
		}
		return a, func() {
			if err := a.Close(); err != nil {
				logger.Warn("leadscout: browser close failed", "error", err)
			}
		}, nil

	default:
		return nil, noop, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

func buildClassifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (classify.Classifier, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	classifier, err := classify.NewGeminiClassifier(ctx, classify.GeminiConfig{
		APIKey:            apiKey,
		Model:             cfg.Classifier.Model,
		RequestsPerMinute: cfg.Classifier.RequestsPerMinute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	return classifier, nil
}

func buildLeadStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (leadstore.Store, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		store, err := leadstore.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("leadscout: lead history in postgres")
		return store, nil
	}
	if cfg.Storage.SQLitePath != "" {
		store, err := leadstore.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("leadscout: lead history in sqlite", "path", cfg.Storage.SQLitePath)
		return store, nil
	}
	logger.Warn("leadscout: lead history disabled")
	return leadstore.NopStore{}, nil
}

func buildBot(sets *settings.Manager, classifier classify.Classifier, logger *slog.Logger) (*telegram.Bot, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
	}
	bot, err := telegram.New(telegram.Config{Token: token, ChatID: chatID}, sets, classifier, logger)
	if err != nil {
		return nil, err
	}
	return bot, nil
}
