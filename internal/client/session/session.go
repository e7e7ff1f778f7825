// Package session owns the client session lifecycle: login, logout,
// refresh and the authenticated/anonymous state machine. It is the only
// writer of the durable credential store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/client/authz"
	"craftdesk.org/internal/client/credstore"
	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/client/token"
)

// State is the session lifecycle phase.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateRefreshing     State = "refreshing"
)

// ErrNotAuthenticated is returned by operations that require a live session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Profile is the cached identity of the signed-in user.
type Profile struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name,omitempty"`
	Role     auth.Role `json:"role"`
}

// tokenPayload mirrors the server's session response.
type tokenPayload struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         struct {
		ID       string    `json:"id"`
		Username string    `json:"username"`
		FullName string    `json:"full_name"`
		Role     auth.Role `json:"role"`
	} `json:"user"`
}

// Manager orchestrates the session. Safe for concurrent use; refresh is
// single-flight so concurrent 401s collapse into one network call.
type Manager struct {
	gw        *gateway.Client
	store     *credstore.Store
	validator *token.Validator

	mu      sync.Mutex
	state   State
	creds   credstore.Credentials
	profile Profile

	sf singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator overrides the token validator, used by tests to control
// the clock.
func WithValidator(v *token.Validator) Option {
	return func(m *Manager) {
		if v != nil {
			m.validator = v
		}
	}
}

// NewManager wires itself into the gateway as its Authorizer.
func NewManager(gw *gateway.Client, store *credstore.Store, opts ...Option) *Manager {
	m := &Manager{
		gw:        gw,
		store:     store,
		validator: token.NewValidator(),
		state:     StateAnonymous,
	}
	for _, opt := range opts {
		opt(m)
	}
	gw.SetAuthorizer(m)
	return m
}

// Restore loads persisted credentials from the durable store. A stored
// token that is structurally invalid or expired is discarded rather than
// restored; the caller simply starts anonymous.
func (m *Manager) Restore(ctx context.Context) error {
	creds, ok, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, valid := token.Parse(creds.AccessToken); !valid || m.validator.IsExpired(creds.ExpiresAt) {
		return m.teardown(ctx)
	}
	var profile Profile
	if err := json.Unmarshal(creds.Profile, &profile); err != nil {
		return m.teardown(ctx)
	}

	m.mu.Lock()
	m.creds = creds
	m.profile = profile
	m.state = StateAuthenticated
	m.mu.Unlock()
	return nil
}

// Login authenticates and establishes the session all-or-nothing: on any
// failure no session state survives, in memory or in the durable store.
// A re-login over an existing session replaces it entirely, so a rejected
// attempt cannot leave the previous credentials behind.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.setState(StateAuthenticating)

	var payload tokenPayload
	err := m.gw.Post(ctx, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &payload)
	if err != nil {
		_ = m.teardown(ctx)
		return err
	}
	if err := m.install(ctx, payload); err != nil {
		_ = m.teardown(ctx)
		return err
	}
	return nil
}

// Logout notifies the server best-effort, then unconditionally tears the
// local session down. Calling it while anonymous is a no-op success.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	refresh := m.creds.RefreshToken
	m.mu.Unlock()

	if refresh != "" {
		// Server failure must never block local teardown.
		_ = m.gw.Post(ctx, "/api/v1/auth/logout", map[string]string{"refresh_token": refresh}, nil)
	}
	return m.teardown(ctx)
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share one in-flight exchange and observe its single outcome. Any failure
// tears the whole session down.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.sf.Do("refresh", func() (any, error) {
		return nil, m.refreshOnce(ctx)
	})
	return err
}

func (m *Manager) refreshOnce(ctx context.Context) error {
	m.mu.Lock()
	refresh := m.creds.RefreshToken
	if refresh == "" {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.state = StateRefreshing
	m.mu.Unlock()

	var payload tokenPayload
	err := m.gw.Post(ctx, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh}, &payload)
	if err != nil {
		_ = m.teardown(ctx)
		return err
	}
	if err := m.install(ctx, payload); err != nil {
		_ = m.teardown(ctx)
		return err
	}
	return nil
}

// IsAuthenticated reports whether a structurally valid, unexpired token is
// held. Any negative implicitly tears the session down so a stale session
// is never observable afterwards.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	creds := m.creds
	state := m.state
	m.mu.Unlock()

	if state != StateAuthenticated && state != StateRefreshing {
		return false
	}
	if _, ok := token.Parse(creds.AccessToken); !ok || m.validator.IsExpired(creds.ExpiresAt) {
		_ = m.teardown(ctx)
		return false
	}
	return true
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Profile returns the cached identity. Zero value while anonymous.
func (m *Manager) Profile() Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// Resolver materializes the permission resolver for the current role.
// While anonymous it resolves the empty role, which denies everything.
func (m *Manager) Resolver() authz.Resolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return authz.NewResolver(m.profile.Role)
}

// AccessToken implements gateway.Authorizer.
func (m *Manager) AccessToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds.AccessToken == "" {
		return "", false
	}
	return m.creds.AccessToken, true
}

// ChangePassword asks the server to rotate the password. The server
// revokes all refresh tokens on success, so the session is torn down and
// the user must log in again.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) error {
	if err := m.gw.Post(ctx, "/api/v1/auth/change-password", map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil); err != nil {
		return err
	}
	return m.teardown(ctx)
}

func (m *Manager) install(ctx context.Context, payload tokenPayload) error {
	if payload.AccessToken == "" || payload.RefreshToken == "" || payload.User.ID == "" {
		return errors.New("incomplete session response")
	}
	claims, ok := token.Parse(payload.AccessToken)
	if !ok {
		return errors.New("malformed access token in response")
	}
	expiresAt := payload.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = claims.ExpiresAt
	}

	profile := Profile{
		ID:       payload.User.ID,
		Username: payload.User.Username,
		FullName: payload.User.FullName,
		Role:     payload.User.Role,
	}
	rawProfile, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	creds := credstore.Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    expiresAt,
		Profile:      rawProfile,
	}
	if err := m.store.Save(ctx, creds); err != nil {
		return err
	}

	m.mu.Lock()
	m.creds = creds
	m.profile = profile
	m.state = StateAuthenticated
	m.mu.Unlock()
	return nil
}

func (m *Manager) teardown(ctx context.Context) error {
	m.mu.Lock()
	m.creds = credstore.Credentials{}
	m.profile = Profile{}
	m.state = StateAnonymous
	m.mu.Unlock()
	return m.store.Clear(ctx)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
