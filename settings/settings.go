// Package settings holds the operator configuration: what to monitor,
// what is being sold, and how leads are delivered. The configuration is
// a flat JSON document loaded once at startup (merged over defaults so
// missing keys never crash) and rewritten synchronously on every mutation.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Modes for lead delivery.
const (
	ModeNotify   = "notify"    // notification card only
	ModeAutoSend = "auto_send" // notification plus a ready-to-copy outreach draft
)

// Settings is the operator configuration record.
type Settings struct {
	Mode        string   `json:"mode"`
	Keywords    []string `json:"keywords"`
	Subreddits  []string `json:"subreddits"`
	MinScore    int      `json:"min_score"`
	YourProduct string   `json:"your_product"`
	YourName    string   `json:"your_name"`
	Language    string   `json:"language"`
}

// Defaults returns the hardcoded baseline every load merges over.
func Defaults() Settings {
	return Settings{
		Mode:       ModeNotify,
		Keywords:   []string{},
		Subreddits: []string{},
		MinScore:   0,
		Language:   "en",
	}
}

// Manager owns the settings record, guards concurrent access, and
// persists every mutation synchronously.
type Manager struct {
	mu   sync.Mutex
	path string
	cur  Settings
}

// Load reads the settings file, merging it over defaults. A missing file
// yields pure defaults; unknown keys in the file are ignored.
func Load(path string) (*Manager, error) {
	m := &Manager{path: path, cur: Defaults()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	// Unmarshal into the defaults so absent keys keep their default value.
	if err := json.Unmarshal(data, &m.cur); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	m.cur.normalize()
	return m, nil
}

func (s *Settings) normalize() {
	if s.Mode != ModeAutoSend {
		s.Mode = ModeNotify
	}
	s.MinScore = clampScore(s.MinScore)
	s.Keywords = dedupeKeepOrder(s.Keywords)
	s.Subreddits = dedupeKeepOrder(s.Subreddits)
	if s.Language == "" {
		s.Language = "en"
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}

func dedupeKeepOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Snapshot returns a copy of the current settings. Slices are cloned so
// callers cannot mutate shared state.
func (m *Manager) Snapshot() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.cur
	s.Keywords = append([]string(nil), m.cur.Keywords...)
	s.Subreddits = append([]string(nil), m.cur.Subreddits...)
	return s
}

// persistLocked writes the current settings with an atomic rename so a
// concurrent load never observes a torn file. Caller holds m.mu.
func (m *Manager) persistLocked() error {
	data, err := json.MarshalIndent(m.cur, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("settings: write temp: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("settings: rename: %w", err)
	}
	return nil
}

func (m *Manager) mutate(fn func(*Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.cur)
	m.cur.normalize()
	return m.persistLocked()
}

// SetKeywords replaces the monitored keyword list.
func (m *Manager) SetKeywords(kws []string) error {
	return m.mutate(func(s *Settings) { s.Keywords = kws })
}

// SetSubreddits replaces the source scope.
func (m *Manager) SetSubreddits(subs []string) error {
	return m.mutate(func(s *Settings) { s.Subreddits = subs })
}

// SetMinScore sets the relevance threshold, clamped to [0,10].
func (m *Manager) SetMinScore(n int) error {
	return m.mutate(func(s *Settings) { s.MinScore = n })
}

// SetProduct sets the product description used for classification.
func (m *Manager) SetProduct(p string) error {
	return m.mutate(func(s *Settings) { s.YourProduct = strings.TrimSpace(p) })
}

// SetName sets the seller name used for outreach personalization.
func (m *Manager) SetName(n string) error {
	return m.mutate(func(s *Settings) { s.YourName = strings.TrimSpace(n) })
}

// SetLanguage sets the outreach language code.
func (m *Manager) SetLanguage(l string) error {
	return m.mutate(func(s *Settings) { s.Language = strings.TrimSpace(l) })
}

// ToggleMode flips notify ↔ auto_send and returns the new mode.
func (m *Manager) ToggleMode() (string, error) {
	var mode string
	err := m.mutate(func(s *Settings) {
		if s.Mode == ModeNotify {
			s.Mode = ModeAutoSend
		} else {
			s.Mode = ModeNotify
		}
		mode = s.Mode
	})
	return mode, err
}
