package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/settings"
	"github.com/vkoval/leadscout/source"
)

func testDeps(t *testing.T) (*settings.Manager, classify.Classifier, *slog.Logger) {
	t.Helper()
	sets, err := settings.Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	cls := classify.ClassifyFunc(func(context.Context, *source.Post, classify.Context) (*classify.Verdict, error) {
		return &classify.Verdict{RelevanceScore: 5}, nil
	})
	return sets, cls, slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildBotRequiresToken(t *testing.T) {
	// WHAT: buildBot wires the classifier through to the bot and fails fast
	// when the token env is missing, before any network call.
	sets, cls, logger := testDeps(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	if _, err := buildBot(sets, cls, logger); err == nil ||
		!strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Fatalf("err = %v, want missing-token error", err)
	}
}

func TestBuildBotRequiresChatID(t *testing.T) {
	sets, cls, logger := testDeps(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	if _, err := buildBot(sets, cls, logger); err == nil ||
		!strings.Contains(err.Error(), "TELEGRAM_CHAT_ID") {
		t.Fatalf("err = %v, want chat-id parse error", err)
	}
}
