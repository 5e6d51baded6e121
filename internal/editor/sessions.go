package editor

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/debemdeboas/lending-admin/internal/model"
)

const (
	DefaultSweepInterval = 10 * time.Minute
	DefaultMaxIdle       = 12 * time.Hour
)

type sessionKey struct {
	id       string
	resource model.ResourceKey
}

type sessionEntry struct {
	binding  Binding
	lastUsed time.Time

	// loadMu makes the first load of binding happen once, before any request
	// uses it. A failed load is retried by the next request.
	loadMu sync.Mutex
}

// Sessions holds the open editing sessions, one per browser session and
// collection.
type Sessions struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[sessionKey]*sessionEntry
}

func NewSessions(clock clockwork.Clock) *Sessions {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sessions{
		clock:   clock,
		entries: make(map[sessionKey]*sessionEntry),
	}
}

// Get returns the loaded session of id for res, opening one when needed.
func (s *Sessions) Get(ctx context.Context, id string, res Resource, env Env) (Binding, error) {
	key := sessionKey{id: id, resource: res.Key()}

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &sessionEntry{binding: res.NewBinding(env)}
		s.entries[key] = e
		editorLogger.Debug().Str("resource", string(key.resource)).Msg("Opened editing session")
	}
	e.lastUsed = s.clock.Now()
	s.mu.Unlock()

	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if !e.binding.Loaded() {
		if err := e.binding.Load(ctx); err != nil {
			return nil, err
		}
	}
	return e.binding, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep closes sessions unused for maxIdle that have nothing left to save.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	now := s.clock.Now()

	s.mu.Lock()
	var idle []Binding
	for key, e := range s.entries {
		if now.Sub(e.lastUsed) < maxIdle || !e.binding.CanLeave() {
			continue
		}
		idle = append(idle, e.binding)
		delete(s.entries, key)
	}
	s.mu.Unlock()

	for _, b := range idle {
		b.Close()
	}
	if len(idle) > 0 {
		editorLogger.Info().Int("closed", len(idle)).Msg("Closed idle editing sessions")
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep(maxIdle)
		}
	}
}

func (s *Sessions) Close() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[sessionKey]*sessionEntry)
	s.mu.Unlock()

	for _, e := range entries {
		e.binding.Close()
	}
}
