// Package session holds the client-facing auth state: a Manager owns an
// in-memory copy of the current session and user, refreshed on demand and on
// provider-pushed auth-change notifications. It is the counterpart of the
// server-side route guard, which re-derives session state per request; the
// two read the same provider but are not synchronized.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rdouglass/quicknotes/internal/identity"
	"github.com/rdouglass/quicknotes/internal/model"
)

var ErrClosed = errors.New("session manager is closed")

// Manager is constructed explicitly and passed by handle; there is no ambient
// singleton. NewManager performs the initial refresh and subscribes to
// auth-change notifications; Close unsubscribes.
type Manager struct {
	provider        identity.Provider
	confirmRedirect string
	logger          *slog.Logger

	mu      sync.Mutex
	session *model.Session
	user    *model.User
	loading bool
	// seq numbers refresh attempts; applied is the seq of the last state
	// write. A completion with seq < applied is stale and discarded.
	seq         uint64
	applied     uint64
	unsubscribe func()
	closed      bool
}

// NewManager builds a Manager bound to the provider. confirmRedirect is the
// path attached to sign-up requests as the post-confirmation landing target.
func NewManager(provider identity.Provider, confirmRedirect string, logger *slog.Logger) *Manager {
	m := &Manager{
		provider:        provider,
		confirmRedirect: confirmRedirect,
		logger:          logger,
		loading:         true,
	}
	m.Refresh(context.Background())
	m.unsubscribe = provider.OnAuthStateChange(m.handleAuthChange)
	return m
}

// Refresh fetches the current session from the provider and replaces the local
// session and user atomically. The loading flag is true for the duration and
// false on completion, including on failure; a failure leaves the session
// as-is and is logged, never returned. Stale completions are discarded.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.seq++
	seq := m.seq
	m.loading = true
	token := ""
	if m.session != nil {
		token = m.session.Token
	}
	m.mu.Unlock()

	sess, user, err := m.fetch(ctx, token)

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.applied {
		// A newer refresh or notification already landed.
		return
	}
	m.applied = seq
	m.loading = false
	if err != nil {
		m.logger.Error("refresh session", "error", err)
		return
	}
	m.session = sess
	m.user = user
}

// fetch resolves the session and its user together so the caller can apply
// both under one lock acquisition.
func (m *Manager) fetch(ctx context.Context, token string) (*model.Session, *model.User, error) {
	sess, err := m.provider.GetSession(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, nil, nil
	}
	user, err := m.provider.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	return sess, user, nil
}

// handleAuthChange is invoked asynchronously by the provider on sign-in,
// sign-out, and token refresh. It overwrites the local session and user and
// clears the loading flag, superseding any in-flight refresh.
func (m *Manager) handleAuthChange(event identity.Event, sess *model.Session) {
	var user *model.User
	if sess != nil {
		var err error
		user, err = m.provider.GetUser(context.Background(), sess.UserID)
		if err != nil {
			m.logger.Error("auth change user lookup", "event", string(event), "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.seq++
	m.applied = m.seq
	m.loading = false
	m.session = sess
	m.user = user
}

// SignIn authenticates with email and password. Email and password must be
// non-empty; no further validation happens here. On success the session is
// refreshed. The returned error is nil on success and carries a human-readable
// message otherwise; SignIn never panics past this boundary.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	sess, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.seq++
	m.applied = m.seq
	m.session = sess
	m.mu.Unlock()

	m.Refresh(ctx)
	return nil
}

// SignUp passes the raw input through to the provider with the
// email-confirmation redirect target attached. Input constraints (password
// confirmation, length) are the caller's concern.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	_, err := m.provider.SignUp(ctx, email, password, m.confirmRedirect)
	return err
}

// SignOut signs out remotely best-effort, then unconditionally clears the
// local session and user. A remote failure is logged, not surfaced: the local
// state reports logged-out even if the remote session survives until expiry.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	token := ""
	if m.session != nil {
		token = m.session.Token
	}
	m.mu.Unlock()

	if token != "" {
		if err := m.provider.SignOut(ctx, token); err != nil {
			m.logger.Warn("remote sign-out failed", "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.applied = m.seq
	m.loading = false
	m.session = nil
	m.user = nil
}

// Current returns copies of the session and user; nil when signed out.
func (m *Manager) Current() (*model.Session, *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sess *model.Session
	if m.session != nil {
		s := *m.session
		sess = &s
	}
	var user *model.User
	if m.user != nil {
		u := *m.user
		user = &u
	}
	return sess, user
}

// Loading reports whether a refresh is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Close unsubscribes from auth-change notifications. Further operations on a
// closed Manager are no-ops; in-flight provider calls are not aborted.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
