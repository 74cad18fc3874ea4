package session

import (
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/dictee/internal/game"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyActive is returned by [Manager.TryAcquire] while a session runs.
	ErrAlreadyActive = errors.New("session: a session is already active")

	// ErrNotActive is returned when no session is running.
	ErrNotActive = errors.New("session: no active session")

	// ErrStaleToken is returned when the caller's token belongs to a session
	// that has since ended or been replaced.
	ErrStaleToken = errors.New("session: stale session token")
)

// DefaultLives is the number of lives a new session starts with.
const DefaultLives = 3

// Start describes the session requested by a play command.
type Start struct {
	PlayerID   string
	ChannelID  string
	Difficulty game.Difficulty
	Language   game.Language

	// Lives overrides [DefaultLives] when positive.
	Lives int
}

// Option is a functional option for configuring a [Manager].
type Option func(*Manager)

// WithTokenSource replaces the token generator, for tests.
func WithTokenSource(fn func() string) Option {
	return func(m *Manager) {
		m.newToken = fn
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		m.now = fn
	}
}

// Manager owns the active [State]. At most one session is active at any
// time. All methods are safe for concurrent use and hand out copies, never
// the live record.
type Manager struct {
	mu    sync.Mutex
	state *State

	newToken func() string
	now      func() time.Time
}

// NewManager returns an idle [Manager].
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		newToken: uuid.NewString,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TryAcquire binds a new session to s.PlayerID. It fails with
// [ErrAlreadyActive], leaving the running session untouched, if any session
// is active, including one owned by the same player.
func (m *Manager) TryAcquire(s Start) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil {
		return m.state.Clone(), ErrAlreadyActive
	}

	lives := s.Lives
	if lives <= 0 {
		lives = DefaultLives
	}
	m.state = &State{
		Token:      m.newToken(),
		PlayerID:   s.PlayerID,
		ChannelID:  s.ChannelID,
		Difficulty: s.Difficulty,
		Language:   s.Language,
		Lives:      lives,
		Played:     map[string]struct{}{},
		Status:     StatusNormal,
		StartedAt:  m.now(),
	}
	return m.state.Clone(), nil
}

// Update applies fn to the live state if token still identifies it and the
// session was not stopped. Lives are clamped at zero after fn runs.
func (m *Manager) Update(token string, fn func(*State)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(token); err != nil {
		return State{}, err
	}
	fn(m.state)
	m.state.Lives = max(m.state.Lives, 0)
	return m.state.Clone(), nil
}

// Release ends the session identified by token and returns its final state.
func (m *Manager) Release(token string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(token); err != nil {
		return State{}, err
	}
	final := m.state.Clone()
	m.state = nil
	return final, nil
}

// Stop flags the session identified by token as stopped and resets the
// manager to idle before returning. The returned state carries
// [StatusStopped]. Stopping with a token that no longer matches fails with
// [ErrStaleToken] so a late stop never ends a newer session.
func (m *Manager) Stop(token string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return State{}, ErrNotActive
	}
	if m.state.Token != token {
		return State{}, ErrStaleToken
	}
	m.state.Status = StatusStopped
	final := m.state.Clone()
	m.state = nil
	return final, nil
}

// Snapshot returns a copy of the running session, if any.
func (m *Manager) Snapshot() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return State{}, false
	}
	return m.state.Clone(), true
}

// Current reports whether token identifies the running, unstopped session.
func (m *Manager) Current(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkLocked(token) == nil
}

func (m *Manager) checkLocked(token string) error {
	if m.state == nil {
		return ErrStaleToken
	}
	if m.state.Token != token || m.state.Status == StatusStopped {
		return ErrStaleToken
	}
	return nil
}
