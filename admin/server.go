// Package admin exposes a small local HTTP endpoint for health checks and
// operational introspection. It is meant to be bound to localhost; it
// carries no authentication of its own.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vkoval/leadscout/leadstore"
	"github.com/vkoval/leadscout/monitor"
	"github.com/vkoval/leadscout/settings"
)

// Server is the admin HTTP endpoint.
type Server struct {
	addr       string
	controller *monitor.Controller
	sets       *settings.Manager
	leads      leadstore.Store
	logger     *slog.Logger
	router     *chi.Mux
}

// New builds the admin server. A nil leads store reports zero history.
func New(addr string, controller *monitor.Controller, sets *settings.Manager,
	leads leadstore.Store, logger *slog.Logger) *Server {
	if leads == nil {
		leads = leadstore.NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:       addr,
		controller: controller,
		sets:       sets,
		leads:      leads,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/leads", s.handleLeads)
	s.router = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("admin: listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Running   bool              `json:"running"`
	SeenPosts int               `json:"seen_posts"`
	LeadCount int               `json:"lead_count"`
	Settings  settings.Settings `json:"settings"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.leads.CountLeads(r.Context())
	if err != nil {
		s.logger.Warn("admin: lead count failed", "error", err)
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Running:   s.controller.Running(),
		SeenPosts: s.controller.SeenCount(),
		LeadCount: count,
		Settings:  s.sets.Snapshot(),
	})
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	leads, err := s.leads.RecentLeads(r.Context(), limit)
	if err != nil {
		s.logger.Error("admin: recent leads failed", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if leads == nil {
		leads = []*leadstore.Lead{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("admin: encode response failed", "error", err)
	}
}
