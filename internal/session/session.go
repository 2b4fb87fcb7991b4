// Package session owns the authenticated session: the access token, the
// refresh token and the current user. A Manager is the single source of
// truth the API client reads before every request; it is written only by
// login, refresh and logout, and persisted to a storage.Store so it
// survives restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/hearthside/client-go/internal/storage"
)

// ErrNotAuthenticated is returned by Token when there is no access token.
var ErrNotAuthenticated = errors.New("not authenticated")

// UserSummary is the part of the user record the client keeps with the
// session. Everything else about users is an opaque payload.
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role,omitempty"`
	AvatarURL   string `json:"avatar,omitempty"`
}

// UnmarshalJSON accepts both "id" and the document-store style "_id".
func (u *UserSummary) UnmarshalJSON(data []byte) error {
	type plain UserSummary
	var aux struct {
		plain
		DocID string `json:"_id"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = UserSummary(aux.plain)
	if u.ID == "" {
		u.ID = aux.DocID
	}
	if u.DisplayName == "" {
		u.DisplayName = aux.Name
	}
	return nil
}

// Session is a snapshot of the authenticated state.
type Session struct {
	AccessToken  string
	RefreshToken string
	CurrentUser  *UserSummary
}

// Authenticated reports whether the session holds both a token and a user.
func (s Session) Authenticated() bool {
	return s.AccessToken != "" && s.CurrentUser != nil
}

// Consistent reports whether the token and the user are either both present
// or both absent.
func (s Session) Consistent() bool {
	return (s.AccessToken != "") == (s.CurrentUser != nil)
}

// ExpiresAt returns the exp claim of a JWT access token. The signature is
// not verified; the server remains the authority. Opaque tokens and tokens
// without exp return the zero time.
func (s Session) ExpiresAt() time.Time {
	return tokenExpiry(s.AccessToken)
}

func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Manager holds the current session and keeps the store in sync with it.
type Manager struct {
	mu      sync.RWMutex
	store   storage.Store
	current Session
	expiry  time.Time
	logger  zerolog.Logger
	subs    *listeners
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With().Str("component", "session").Logger()
	}
}

// NewManager creates a Manager backed by store. Call Load to restore a
// persisted session.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: zerolog.Nop(),
		subs:   newListeners(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores the session from the store. A user record that cannot be
// decoded is dropped, which leaves the session inconsistent so the caller
// re-validates it.
func (m *Manager) Load(ctx context.Context) error {
	access, err := storage.GetOptional(ctx, m.store, storage.KeyToken)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	refresh, err := storage.GetOptional(ctx, m.store, storage.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("load refresh token: %w", err)
	}
	rawUser, err := storage.GetOptional(ctx, m.store, storage.KeyCurrentUser)
	if err != nil {
		return fmt.Errorf("load current user: %w", err)
	}

	var user *UserSummary
	if rawUser != "" {
		var u UserSummary
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			m.logger.Warn().Err(err).Msg("discarding unreadable stored user")
		} else {
			user = &u
		}
	}

	m.mu.Lock()
	m.current = Session{AccessToken: access, RefreshToken: refresh, CurrentUser: user}
	m.expiry = tokenExpiry(access)
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the current session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.current
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		s.CurrentUser = &u
	}
	return s
}

// Authenticated reports whether the current session is authenticated.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Authenticated()
}

// Consistent reports whether the current session satisfies the
// token-set-iff-user-set invariant.
func (m *Manager) Consistent() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Consistent()
}

// Token implements oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  m.current.AccessToken,
		RefreshToken: m.current.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       m.expiry,
	}, nil
}

// Set replaces the whole session. Used after login and registration.
func (m *Manager) Set(ctx context.Context, s Session) error {
	if s.AccessToken == "" {
		return fmt.Errorf("session without access token")
	}

	m.mu.Lock()
	if err := m.persistLocked(ctx, s); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = s
	m.expiry = tokenExpiry(s.AccessToken)
	snapshot := m.current
	m.mu.Unlock()

	m.logger.Info().Str("user", userID(snapshot.CurrentUser)).Msg("session established")
	m.subs.notify(EventLogin, snapshot)
	return nil
}

// SetTokens replaces the tokens and keeps the current user. Used after a
// token refresh. An empty refreshToken keeps the existing one.
func (m *Manager) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" {
		return fmt.Errorf("empty access token")
	}

	m.mu.Lock()
	next := m.current
	next.AccessToken = accessToken
	if refreshToken != "" {
		next.RefreshToken = refreshToken
	}
	if err := m.store.Set(ctx, storage.KeyToken, next.AccessToken); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist token: %w", err)
	}
	if next.RefreshToken != "" {
		if err := m.store.Set(ctx, storage.KeyRefreshToken, next.RefreshToken); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("persist refresh token: %w", err)
		}
	}
	m.current = next
	m.expiry = tokenExpiry(accessToken)
	snapshot := m.current
	m.mu.Unlock()

	m.subs.notify(EventRefresh, snapshot)
	return nil
}

// SetUser replaces the current user. Used after re-validating the session
// against the server.
func (m *Manager) SetUser(ctx context.Context, user *UserSummary) error {
	if user == nil {
		return fmt.Errorf("nil user")
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err) //coverage:ignore
	}

	m.mu.Lock()
	if err := m.store.Set(ctx, storage.KeyCurrentUser, string(raw)); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist current user: %w", err)
	}
	u := *user
	m.current.CurrentUser = &u
	snapshot := m.current
	m.mu.Unlock()

	m.subs.notify(EventUserUpdated, snapshot)
	return nil
}

// Clear removes the session from memory and from the store. The in-memory
// session is cleared even if the store fails.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	wasSet := m.current.AccessToken != "" || m.current.CurrentUser != nil || m.current.RefreshToken != ""
	m.current = Session{}
	m.expiry = time.Time{}

	var errs []error
	for _, key := range []string{storage.KeyToken, storage.KeyRefreshToken, storage.KeyCurrentUser} {
		if err := m.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	m.mu.Unlock()

	if wasSet {
		m.logger.Info().Msg("session cleared")
		m.subs.notify(EventCleared, Session{})
	}
	return errors.Join(errs...)
}

// Expire clears the session after the server rejected it.
func (m *Manager) Expire(ctx context.Context) error {
	return m.Clear(ctx)
}

// Subscribe registers fn to be called after every session change and
// returns a function that removes it. A call to fn already in progress when
// the function returns is allowed to finish.
func (m *Manager) Subscribe(fn Listener) func() {
	return m.subs.subscribe(fn)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.subs.clear()
}

func (m *Manager) persistLocked(ctx context.Context, s Session) error {
	if err := m.store.Set(ctx, storage.KeyToken, s.AccessToken); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if s.RefreshToken != "" {
		if err := m.store.Set(ctx, storage.KeyRefreshToken, s.RefreshToken); err != nil {
			return fmt.Errorf("persist refresh token: %w", err)
		}
	} else if err := m.store.Delete(ctx, storage.KeyRefreshToken); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if s.CurrentUser != nil {
		raw, err := json.Marshal(s.CurrentUser)
		if err != nil {
			return fmt.Errorf("encode user: %w", err) //coverage:ignore
		}
		if err := m.store.Set(ctx, storage.KeyCurrentUser, string(raw)); err != nil {
			return fmt.Errorf("persist current user: %w", err)
		}
	} else if err := m.store.Delete(ctx, storage.KeyCurrentUser); err != nil {
		return fmt.Errorf("delete current user: %w", err)
	}
	return nil
}

func userID(u *UserSummary) string {
	if u == nil {
		return ""
	}
	return u.ID
}
