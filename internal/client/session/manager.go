// Package session owns the client's authentication state: whether a user is
// logged in, who they are, and the transitions between those states. It is
// the single writer of that state; everything else observes it read-only
// through State snapshots and subscriptions.
package session

import (
	"context"
	"sync"

	"github.com/mkartavenko/taskhub/internal/client/api"
	"github.com/mkartavenko/taskhub/internal/client/creds"
	"github.com/mkartavenko/taskhub/internal/client/models"
	"github.com/mkartavenko/taskhub/internal/logging"
)

// State is a read-only snapshot of the session.
//
// IsAuthenticated is true iff a profile fetch with the current access token
// has succeeded since the last credential change. Loading is true only
// during the initial bootstrap check.
type State struct {
	User            *models.User
	IsAuthenticated bool
	Loading         bool
}

// API is the slice of the api.Client the manager depends on.
type API interface {
	Register(ctx context.Context, name, email, password string) (*api.AuthResult, error)
	Login(ctx context.Context, email, password string) (*api.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, patch api.ProfilePatch) (*models.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// Notifier delivers one-shot user-facing messages. The CLI prints them;
// tests record them.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Success(msg string) {}
func (NopNotifier) Error(msg string)   {}

// Manager orchestrates login, registration, logout and profile changes,
// keeping the credential store and the in-memory session state consistent.
//
// Every credential-changing transition bumps a generation counter. Network
// completions carry the generation they started under and are discarded when
// it is stale, so a response that arrives after a logout can never resurrect
// the cleared session.
type Manager struct {
	api    API
	store  creds.Store
	log    logging.Logger
	notify Notifier

	mu         sync.Mutex
	state      State
	generation uint64
	subs       []func(State)
}

func NewManager(apiClient API, store creds.Store, log logging.Logger, notify Notifier) *Manager {
	if log == nil {
		log = logging.NopLogger{}
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Manager{
		api:    apiClient,
		store:  store,
		log:    log,
		notify: notify,
		state:  State{Loading: true},
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn to be called with a snapshot after every state
// transition. Subscriptions cannot be removed; the set is fixed for the
// lifetime of the manager.
func (m *Manager) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Manager) gen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// apply mutates the state under the lock and notifies subscribers outside
// it. bump marks credential-changing transitions.
func (m *Manager) apply(bump bool, fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	if bump {
		m.generation++
	}
	st := m.state
	subs := append([]func(State){}, m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		s(st)
	}
}

// applyIfCurrent is apply for completions of in-flight operations: the
// mutation is dropped when the session generation moved on since the
// operation started. bump marks transitions that change credentials.
func (m *Manager) applyIfCurrent(gen uint64, bump bool, fn func(*State)) bool {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return false
	}
	fn(&m.state)
	if bump {
		m.generation++
	}
	st := m.state
	subs := append([]func(State){}, m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		s(st)
	}
	return true
}

// Bootstrap resolves the initial session state. With no stored access token
// it settles to unauthenticated without touching the network; otherwise it
// attempts a profile fetch and clears the credentials on any failure.
// Loading stays true until one of those outcomes is reached.
func (m *Manager) Bootstrap(ctx context.Context) {
	pair, err := m.store.Get(ctx)
	if err != nil {
		m.log.Warn(ctx, "credential store unavailable on bootstrap", "error", err)
	}
	if pair.AccessToken == "" {
		m.apply(false, func(s *State) {
			*s = State{}
		})
		return
	}

	gen := m.gen()
	user, err := m.api.Profile(ctx)
	if err != nil {
		m.log.Warn(ctx, "failed to load user on bootstrap", "error", err)
		if !m.applyIfCurrent(gen, true, func(s *State) {
			*s = State{}
		}) {
			// a login or logout finished while the fetch was in flight;
			// clearing now would wipe credentials that are not ours
			m.log.Warn(ctx, "discarding stale bootstrap failure")
			return
		}
		if cerr := m.store.Clear(ctx); cerr != nil {
			m.log.Error(ctx, "failed to clear credentials", "error", cerr)
		}
		return
	}

	m.applyIfCurrent(gen, false, func(s *State) {
		*s = State{User: user, IsAuthenticated: true}
	})
}

// Login authenticates with the server. On success both tokens and the
// profile are stored and the session becomes authenticated; on failure the
// state is untouched and the server's message is surfaced verbatim.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	gen := m.gen()

	res, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.notify.Error(api.Message(err, "Login failed"))
		return err
	}

	return m.establish(ctx, gen, res, "Login successful")
}

// Register creates an account and logs the new user in.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	gen := m.gen()

	res, err := m.api.Register(ctx, name, email, password)
	if err != nil {
		m.notify.Error(api.Message(err, "Registration failed"))
		return err
	}

	return m.establish(ctx, gen, res, "Registration successful")
}

// establish persists the credential pair and flips the session to
// authenticated, unless the session generation moved on while the auth call
// was in flight.
func (m *Manager) establish(ctx context.Context, gen uint64, res *api.AuthResult, successMsg string) error {
	if err := m.store.Set(ctx, creds.Pair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}); err != nil {
		m.notify.Error("Failed to persist session")
		return err
	}

	user := res.User
	if !m.applyIfCurrent(gen, true, func(s *State) {
		*s = State{User: &user, IsAuthenticated: true}
	}) {
		// the session moved on while the call was in flight; drop the
		// credentials written above rather than resurrect a stale login
		if cerr := m.store.Clear(ctx); cerr != nil {
			m.log.Error(ctx, "failed to clear stale credentials", "error", cerr)
		}
		m.log.Warn(ctx, "discarding stale auth result")
		return nil
	}

	m.notify.Success(successMsg)
	return nil
}

// Logout notifies the server with the current refresh token (best effort:
// failure is logged and otherwise ignored), then unconditionally clears the
// credential store and the session. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	pair, err := m.store.Get(ctx)
	if err != nil {
		m.log.Warn(ctx, "credential store unavailable on logout", "error", err)
	}
	if pair.RefreshToken != "" {
		if err := m.api.Logout(ctx, pair.RefreshToken); err != nil {
			m.log.Warn(ctx, "server logout failed", "error", err)
		}
	}

	// clear credentials before observers hear about the transition
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error(ctx, "failed to clear credentials", "error", err)
	}
	m.apply(true, func(s *State) {
		*s = State{}
	})
	m.notify.Success("Logged out")
}

// UpdateProfile merges the server-returned profile into the session without
// touching tokens or the authenticated flag.
func (m *Manager) UpdateProfile(ctx context.Context, patch api.ProfilePatch) error {
	gen := m.gen()

	user, err := m.api.UpdateProfile(ctx, patch)
	if err != nil {
		m.notify.Error(api.Message(err, "Update failed"))
		return err
	}

	if m.applyIfCurrent(gen, false, func(s *State) {
		s.User = user
	}) {
		m.notify.Success("Profile updated")
	}
	return nil
}

// ChangePassword changes the account password. Session state and tokens are
// unaffected either way.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := m.api.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		m.notify.Error(api.Message(err, "Password change failed"))
		return err
	}
	m.notify.Success("Password changed")
	return nil
}

// HandleAuthExpired is the hook wired into the request pipeline: it clears
// the session after a terminally failed credential renewal. The pipeline has
// already cleared the store; this drops the in-memory state. Idempotent —
// every request queued behind a failed renewal triggers it once.
func (m *Manager) HandleAuthExpired() {
	m.mu.Lock()
	active := m.state.IsAuthenticated || m.state.Loading
	m.mu.Unlock()
	if !active {
		return
	}

	m.apply(true, func(s *State) {
		*s = State{}
	})
	m.notify.Error("Session expired, please log in again")
}
