package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/dedup"
	"github.com/vkoval/leadscout/dispatch"
	"github.com/vkoval/leadscout/leadstore"
	"github.com/vkoval/leadscout/monitor"
	"github.com/vkoval/leadscout/settings"
	"github.com/vkoval/leadscout/source"
)

type stubAdapter struct{}

func (stubAdapter) Name() string     { return "stub" }
func (stubAdapter) PerKeyword() bool { return false }
func (stubAdapter) Fetch(context.Context, source.Query) ([]source.Post, error) {
	return nil, nil
}

type stubNotifier struct{}

func (stubNotifier) NotifyLead(context.Context, dispatch.Payload) error { return nil }
func (stubNotifier) NotifyOutreach(context.Context, string) error       { return nil }

func testServer(t *testing.T, leads leadstore.Store) (*Server, *settings.Manager) {
	t.Helper()
	sets, err := settings.Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cls := classify.ClassifyFunc(func(context.Context, *source.Post, classify.Context) (*classify.Verdict, error) {
		return &classify.Verdict{RelevanceScore: 5}, nil
	})
	ctrl := monitor.New(stubAdapter{}, cls, dispatch.New(stubNotifier{}, nil, logger),
		dedup.NewStore(), sets, monitor.Config{PollInterval: time.Hour}, logger)
	return New(":0", ctrl, sets, leads, logger), sets
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	// WHAT: /api/status reports run state plus the live settings snapshot.
	srv, sets := testServer(t, nil)
	if err := sets.SetKeywords([]string{"crm"}); err != nil {
		t.Fatal(err)
	}
	if err := sets.SetMinScore(7); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Running {
		t.Error("monitor should be idle")
	}
	if got.Settings.MinScore != 7 || len(got.Settings.Keywords) != 1 {
		t.Errorf("settings = %+v", got.Settings)
	}
}

func TestLeads(t *testing.T) {
	// WHAT: /api/leads returns recent history honoring the limit parameter.
	store, err := leadstore.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.SaveLead(ctx, &leadstore.Lead{PostID: id, Score: 8}); err != nil {
			t.Fatal(err)
		}
	}

	srv, _ := testServer(t, store)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got struct {
		Leads []leadstore.Lead `json:"leads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Leads) != 2 {
		t.Fatalf("got %d leads, want 2", len(got.Leads))
	}
}

func TestLeadsBadLimit(t *testing.T) {
	srv, _ := testServer(t, nil)
	for _, q := range []string{"limit=0", "limit=-3", "limit=9999", "limit=abc"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestLeadsEmptyHistory(t *testing.T) {
	// WHAT: A nil store yields an empty array, not null.
	srv, _ := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !json.Valid([]byte(body)) {
		t.Fatalf("invalid json: %s", body)
	}
	var got struct {
		Leads []leadstore.Lead `json:"leads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Leads == nil || len(got.Leads) != 0 {
		t.Fatalf("leads = %v, want empty slice", got.Leads)
	}
}
