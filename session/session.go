// Package session holds the authenticated identity of the client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-medlocus/api"
	"github.com/goliatone/go-medlocus/internal/logging"
	"github.com/goliatone/go-medlocus/model"
)

// ErrNotAuthenticated is returned by operations that need a logged in user.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error)
}

// Interface assertions
var (
	_ Authenticator   = (*api.Client)(nil)
	_ api.TokenSource = (*Session)(nil)
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOnLogout registers fn to run after Logout has cleared the session.
func WithOnLogout(fn func()) Option {
	return func(s *Session) {
		if fn != nil {
			s.onLogout = append(s.onLogout, fn)
		}
	}
}

// Session tracks the current user and token and mirrors them to a Store.
type Session struct {
	store  Store
	auth   Authenticator
	logger logging.Logger
	now    func() time.Time

	onLogout []func()

	mu    sync.RWMutex
	user  *model.User
	token string
}

// New creates a Session. Call Restore to pick up stored credentials.
func New(store Store, auth Authenticator, opts ...Option) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{
		store:  store,
		auth:   auth,
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads credentials from the store. Unreadable user data or an
// expired token clears both stored keys. It reports whether a session was
// restored.
func (s *Session) Restore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, hasToken := s.store.Get(KeyToken)
	raw, hasUser := s.store.Get(KeyUser)
	if !hasToken || !hasUser || token == "" {
		return false
	}

	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("discarding stored session", "error", err)
		s.clearLocked()
		return false
	}

	if s.expired(token) {
		s.logger.Info("stored token expired")
		s.clearLocked()
		return false
	}

	s.user = &user
	s.token = token
	return true
}

// expired reports whether token is a JWT whose exp claim has passed. Tokens
// that are not JWTs carry no expiry and never expire client side.
func (s *Session) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Before(exp.Time)
}

// Login validates the credentials, authenticates and persists the result.
// On failure the current session is left as it was.
func (s *Session) Login(ctx context.Context, email, password string) (model.User, error) {
	req := model.LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return model.User{}, err
	}

	resp, err := s.auth.Login(ctx, req)
	if err != nil {
		return model.User{}, err
	}

	raw, err := json.Marshal(resp.User)
	if err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Set(KeyToken, resp.Token)
	s.store.Set(KeyUser, string(raw))
	user := resp.User
	s.user = &user
	s.token = resp.Token
	s.logger.Info("logged in", "user", user.ID)
	return user, nil
}

// Logout clears the session and the stored keys, then runs the logout
// hooks outside the session lock.
func (s *Session) Logout() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	s.logger.Info("logged out")

	for _, fn := range s.onLogout {
		fn()
	}
}

func (s *Session) clearLocked() {
	s.user = nil
	s.token = ""
	s.store.Delete(KeyToken)
	s.store.Delete(KeyUser)
}

// User returns the current user.
func (s *Session) User() (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, ErrNotAuthenticated
	}
	return *s.user, nil
}

// Token returns the bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a user is logged in.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}
