package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Barresider/FlareSolverr/internal/browser"
	"github.com/Barresider/FlareSolverr/internal/model"
	"github.com/Barresider/FlareSolverr/internal/port"
)

// CreateOptions tunes session creation.
type CreateOptions struct {
	// IdleTimeout enables idle cleanup for the session. Zero leaves the
	// session alive until it is explicitly destroyed. When Create finds an
	// existing session, a non-zero IdleTimeout replaces its current one.
	IdleTimeout time.Duration

	// ForceNew destroys any existing session with the same ID before
	// creating a fresh one.
	ForceNew bool
}

// entry pairs the domain session with the browser instance backing it.
type entry struct {
	session *model.Session
	browser browser.Browser
}

// Storage creates, stores and processes all browser sessions. It owns the
// debug-port allocator and the browser launcher; callers never touch either
// directly.
//
// One mutex guards the session map. Browser launches happen inside the
// critical section, which serializes session creation; teardown runs
// outside it so a slow browser exit never blocks other sessions.
type Storage struct {
	mu       sync.Mutex
	sessions map[string]*entry

	allocator *port.Allocator
	launcher  browser.Launcher
	log       zerolog.Logger

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// NewStorage creates an empty session storage over the given allocator and
// launcher.
func NewStorage(allocator *port.Allocator, launcher browser.Launcher, log zerolog.Logger) *Storage {
	return &Storage{
		sessions:  make(map[string]*entry),
		allocator: allocator,
		launcher:  launcher,
		log:       log,
	}
}

// Create returns the session with the given ID, launching a new browser if
// necessary. The second return value reports whether a new session was
// created (true) or an existing one returned (false).
//
// An empty ID gets a generated UUID. For a new session the storage
// allocates a debug port, launches the browser on it, and records the
// binding; if the launch fails the port is released immediately so the
// free set is left exactly as it was.
func (s *Storage) Create(ctx context.Context, id string, opts CreateOptions) (model.Session, bool, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := model.ValidateSessionID(id); err != nil {
		return model.Session{}, false, err
	}

	if opts.ForceNew {
		s.Destroy(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok {
		if opts.IdleTimeout > 0 {
			existing.session.IdleTimeout = opts.IdleTimeout
		}
		existing.session.Touch()
		return *existing.session, false, nil
	}

	debugPort, err := s.allocator.Allocate(id)
	if err != nil {
		return model.Session{}, false, fmt.Errorf("failed to allocate debug port for session %q: %w", id, err)
	}

	b, err := s.launcher.Launch(ctx, id, debugPort)
	if err != nil {
		s.allocator.Release(id)
		return model.Session{}, false, fmt.Errorf("failed to launch browser for session %q: %w", id, err)
	}

	now := time.Now()
	sess := &model.Session{
		ID:           id,
		DebugPort:    debugPort,
		DevtoolsURL:  browser.DevtoolsURL(debugPort),
		CreatedAt:    now,
		LastActivity: now,
		IdleTimeout:  opts.IdleTimeout,
	}
	s.sessions[id] = &entry{session: sess, browser: b}

	s.log.Info().
		Str("session_id", id).
		Int("debug_port", debugPort).
		Dur("idle_timeout", opts.IdleTimeout).
		Msg("session created")

	return *sess, true, nil
}

// Get returns the session with the given ID, creating it when absent. An
// existing session that is marked unhealthy, or whose lifetime exceeds ttl
// (when ttl > 0), is replaced with a fresh browser under the same ID.
func (s *Storage) Get(ctx context.Context, id string, ttl time.Duration) (model.Session, bool, error) {
	sess, created, err := s.Create(ctx, id, CreateOptions{})
	if err != nil || created {
		return sess, created, err
	}

	recreate := false
	switch {
	case sess.Unhealthy:
		s.log.Debug().Str("session_id", sess.ID).Msg("session is unhealthy, recreating")
		recreate = true
	case ttl > 0 && sess.Lifetime() > ttl:
		s.log.Debug().Str("session_id", sess.ID).Msg("session lifetime expired, recreating")
		recreate = true
	}

	if recreate {
		return s.Create(ctx, sess.ID, CreateOptions{ForceNew: true, IdleTimeout: sess.IdleTimeout})
	}

	return sess, false, nil
}

// Destroy stops the session's browser and returns its debug port to the
// free set. It is a no-op returning false when the ID is unknown; true
// means a session was found and destroyed.
func (s *Storage) Destroy(ctx context.Context, id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	// Browser teardown can be slow (graceful exit plus grace period), so
	// it runs outside the lock.
	if err := e.browser.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("browser stop failed")
	}
	s.allocator.Release(id)

	s.log.Info().
		Str("session_id", id).
		Int("debug_port", e.session.DebugPort).
		Msg("session destroyed")

	return true
}

// Describe returns a read-only snapshot of the session, used to build the
// per-session debugging endpoint response. The second return value is
// false when the ID is unknown.
func (s *Storage) Describe(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return *e.session, true
}

// Exists reports whether a session with the given ID is live.
func (s *Storage) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	return ok
}

// List returns snapshots of all live sessions, sorted by ID for stable
// output.
func (s *Storage) List() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, *e.session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live sessions.
func (s *Storage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// Touch resets the session's inactivity clock. Unknown IDs are ignored.
func (s *Storage) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[id]; ok {
		e.session.Touch()
	}
}

// MarkUnhealthy flags a session whose browser stopped responding so the
// next Get replaces it. Unknown IDs are ignored.
func (s *Storage) MarkUnhealthy(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[id]; ok {
		e.session.Unhealthy = true
	}
}

// Shutdown destroys every session and releases every port. The storage is
// usable again afterwards, as if freshly constructed.
func (s *Storage) Shutdown(ctx context.Context) {
	s.StopJanitor()

	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for id, e := range entries {
		if err := e.browser.Stop(ctx); err != nil {
			s.log.Warn().Err(err).Str("session_id", id).Msg("browser stop failed during shutdown")
		}
	}
	s.allocator.Shutdown()

	if len(entries) > 0 {
		s.log.Info().Int("count", len(entries)).Msg("all sessions destroyed")
	}
}

// Allocator exposes the underlying allocator for read-only status queries
// (range bounds, allocation count).
func (s *Storage) Allocator() *port.Allocator {
	return s.allocator
}
