// Package session owns the authentication lifecycle of the storefront:
// the single boot-time session check, login/register/logout, and the
// user-facing expiry notice. It also drives cart reconciliation after a
// successful login or registration.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/saareats/storefront/api"
	"github.com/saareats/storefront/cart"
	"github.com/saareats/storefront/core"
)

// NoticeSessionExpired is the message shown when stored credentials turn
// out to be expired or invalid.
const NoticeSessionExpired = "Session expired. Please log in again."

const (
	defaultNoticeTTL      = 4 * time.Second
	defaultExpiryCoalesce = 1500 * time.Millisecond
)

// AuthAPI is the slice of the backend the manager consumes. api.Client
// implements it.
type AuthAPI interface {
	Me(ctx context.Context) (*api.Identity, error)
	Login(ctx context.Context, email, password string) (*api.Identity, error)
	Register(ctx context.Context, payload api.RegisterPayload) (*api.Identity, error)
	Logout(ctx context.Context) error
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	API        AuthAPI
	Store      *cart.Store
	ServerCart cart.ServerCart
	Logger     core.Logger
	Clock      Clock

	// NoticeTTL is how long an expiry notice stays visible. Defaults to 4s.
	NoticeTTL time.Duration
	// ExpiryCoalesce is the window in which concurrent unauthorized
	// responses collapse into a single notice. Defaults to 1.5s.
	ExpiryCoalesce time.Duration
}

// Manager tracks who is logged in. It starts in a booting state, resolves
// to anonymous or authenticated on the first session check, and stays
// consistent with the backend through explicit Login/Logout/Refresh calls.
// All methods are safe for concurrent use.
type Manager struct {
	api        AuthAPI
	store      *cart.Store
	serverCart cart.ServerCart
	logger     core.Logger
	clock      Clock

	noticeTTL      time.Duration
	expiryCoalesce time.Duration

	startOnce sync.Once
	bootOnce  sync.Once

	mu            sync.Mutex
	user          *api.Identity
	booting       bool
	notice        string
	noticeGen     uint64
	noticeTimer   Timer
	coalesceUntil time.Time
}

// NewManager creates a session manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.API == nil {
		return nil, core.NewClientError("session.NewManager", "session", core.ErrMissingConfiguration)
	}
	if opts.Store == nil {
		return nil, core.NewClientError("session.NewManager", "session", core.ErrMissingConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	noticeTTL := opts.NoticeTTL
	if noticeTTL <= 0 {
		noticeTTL = defaultNoticeTTL
	}
	coalesce := opts.ExpiryCoalesce
	if coalesce <= 0 {
		coalesce = defaultExpiryCoalesce
	}

	return &Manager{
		api:            opts.API,
		store:          opts.Store,
		serverCart:     opts.ServerCart,
		logger:         logger,
		clock:          clock,
		noticeTTL:      noticeTTL,
		expiryCoalesce: coalesce,
		booting:        true,
	}, nil
}

// Start performs the one initial session check. Whatever the outcome,
// Booting flips to false exactly once. An expired session resolves to
// anonymous without error; other failures are returned so callers can
// tell "logged out" from "backend unreachable". Calling Start twice
// returns ErrAlreadyStarted.
func (m *Manager) Start(ctx context.Context) error {
	ran := false
	var err error
	m.startOnce.Do(func() {
		ran = true
		_, err = m.refresh(ctx, true)
		m.clearBooting()
	})
	if !ran {
		return core.ErrAlreadyStarted
	}
	return err
}

func (m *Manager) clearBooting() {
	m.bootOnce.Do(func() {
		m.mu.Lock()
		m.booting = false
		m.mu.Unlock()
	})
}

// Refresh re-validates the session against the backend. An unauthorized
// outcome is handled locally (logout + notice) and then reported as an
// error wrapping core.ErrUnauthorized; other failures propagate as-is.
func (m *Manager) Refresh(ctx context.Context) (*api.Identity, error) {
	return m.refresh(ctx, false)
}

// RefreshSilent is Refresh with unauthorized swallowed: the local logout
// and notice still happen, but the caller sees a nil identity and no
// error. Page loaders use this so an expired session never breaks a view.
func (m *Manager) RefreshSilent(ctx context.Context) (*api.Identity, error) {
	return m.refresh(ctx, true)
}

func (m *Manager) refresh(ctx context.Context, silent bool) (*api.Identity, error) {
	id, err := m.api.Me(ctx)
	if err == nil {
		m.mu.Lock()
		m.user = id
		m.mu.Unlock()
		return id, nil
	}

	if core.IsUnauthorized(err) {
		m.handleUnauthorized()
		if silent {
			return nil, nil
		}
		return nil, core.NewClientError("session.Refresh", "session", core.ErrUnauthorized)
	}

	// Network or server fault: identity is unknown, not expired.
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
	return nil, core.NewClientError("session.Refresh", "session", err)
}

// handleUnauthorized logs the user out locally and raises the expiry
// notice. When several requests hit an expired session at once, only the
// first within the coalescing window raises the notice; the rest just
// drop the user.
func (m *Manager) handleUnauthorized() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = nil

	now := m.clock.Now()
	if now.Before(m.coalesceUntil) {
		return
	}
	m.coalesceUntil = now.Add(m.expiryCoalesce)
	m.setNoticeLocked(NoticeSessionExpired)

	m.logger.Info("Session expired, logged out locally", nil)
}

// setNoticeLocked sets the notice and arms its expiry timer. The
// generation counter keeps a stale timer from wiping a newer notice.
func (m *Manager) setNoticeLocked(msg string) {
	if m.noticeTimer != nil {
		m.noticeTimer.Stop()
	}
	m.notice = msg
	m.noticeGen++
	gen := m.noticeGen
	m.noticeTimer = m.clock.AfterFunc(m.noticeTTL, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.noticeGen == gen {
			m.notice = ""
		}
	})
}

func (m *Manager) clearNoticeLocked() {
	if m.noticeTimer != nil {
		m.noticeTimer.Stop()
		m.noticeTimer = nil
	}
	m.notice = ""
	m.noticeGen++
}

// Login authenticates, re-validates the session for the canonical
// identity, clears any expiry notice, and merges the local cart into the
// server cart. An error from any step propagates and leaves the local
// cart untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (*api.Identity, error) {
	id, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, core.NewClientError("session.Login", "session", err)
	}
	if id != nil {
		m.mu.Lock()
		m.user = id
		m.mu.Unlock()
	}

	if _, err := m.refresh(ctx, true); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.clearNoticeLocked()
	m.mu.Unlock()

	if m.serverCart != nil {
		if err := cart.MergeWithServer(ctx, m.store, m.serverCart, m.logger); err != nil {
			return nil, err
		}
	}

	return m.User(), nil
}

// Register creates an account, re-validates the session, and runs cart
// reconciliation when the local cart has anything to merge.
func (m *Manager) Register(ctx context.Context, payload api.RegisterPayload) (*api.Identity, error) {
	id, err := m.api.Register(ctx, payload)
	if err != nil {
		return nil, core.NewClientError("session.Register", "session", err)
	}
	if id != nil {
		m.mu.Lock()
		m.user = id
		m.mu.Unlock()
	}

	if _, err := m.refresh(ctx, true); err != nil {
		return nil, err
	}

	if m.serverCart != nil && m.store.Len() > 0 {
		if err := cart.MergeWithServer(ctx, m.store, m.serverCart, m.logger); err != nil {
			return nil, err
		}
	}

	return m.User(), nil
}

// Logout ends the session. The backend call is best-effort: the local
// user and notice are cleared regardless, and the error (if any) is
// returned for the caller to log. The local cart survives a logout.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.api.Logout(ctx)

	m.mu.Lock()
	m.user = nil
	m.clearNoticeLocked()
	m.mu.Unlock()

	if err != nil {
		return core.NewClientError("session.Logout", "session", err)
	}
	return nil
}

// IsAuthenticated reports whether a user is currently logged in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// User returns a copy of the current identity, or nil when anonymous.
func (m *Manager) User() *api.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Booting reports whether the initial session check is still in flight.
func (m *Manager) Booting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.booting
}

// Notice returns the current user-facing auth message, empty when none.
func (m *Manager) Notice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notice
}

// ClearNotice dismisses the notice immediately.
func (m *Manager) ClearNotice() {
	m.mu.Lock()
	m.clearNoticeLocked()
	m.mu.Unlock()
}
