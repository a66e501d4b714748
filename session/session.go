// Package session tracks who is logged in. It keeps the credentials in a
// credstore.Store, loads the user profile from the REST API and opens or
// closes the realtime connection as the session starts and ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/circl/go-sdk/api"
	"github.com/circl/go-sdk/credstore"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// UserSource loads the current user's profile. *api.Client satisfies it.
type UserSource interface {
	CurrentUser(ctx context.Context) (*api.User, error)
}

// Realtime is the part of the realtime client a session drives.
// *circl.Client satisfies it.
type Realtime interface {
	Connect(ctx context.Context) error
	Disconnect() error
}

// Config wires a Manager. Store and API are required; Realtime is optional.
type Config struct {
	Store    credstore.Store
	API      UserSource
	Realtime Realtime
	Logger   *zap.Logger

	// Now is the clock used for token expiry. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns the login state. It is safe for concurrent use.
type Manager struct {
	store    credstore.Store
	users    UserSource
	realtime Realtime
	log      *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	user      *api.User
	observers []func(*api.User)
}

// New creates a Manager. It starts logged out; call Restore to pick up
// stored credentials.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session: Store is required")
	}
	if cfg.API == nil {
		return nil, fmt.Errorf("session: API is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:    cfg.Store,
		users:    cfg.API,
		realtime: cfg.Realtime,
		log:      cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// Login stores the credentials, loads the profile and connects realtime.
// A realtime socket opened with a different token is closed first. When the
// profile cannot be loaded the credentials stay stored and the error is
// returned.
func (m *Manager) Login(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return fmt.Errorf("session: user id and token are required")
	}
	prev, err := m.get(ctx, credstore.KeyToken)
	if err != nil {
		return err
	}
	if prev != "" && prev != token {
		m.disconnectRealtime()
	}
	if err := m.store.Set(ctx, credstore.KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := m.store.Set(ctx, credstore.KeyUserID, userID); err != nil {
		return fmt.Errorf("store user id: %w", err)
	}

	user, err := m.users.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	m.setUser(user)
	m.log.Info("session started", zap.String("userId", user.ID))

	m.connectRealtime(ctx)
	return nil
}

// Logout removes the credentials, forgets the user and disconnects realtime.
func (m *Manager) Logout(ctx context.Context) error {
	var errs []error
	if err := m.store.Delete(ctx, credstore.KeyToken); err != nil {
		errs = append(errs, fmt.Errorf("delete token: %w", err))
	}
	if err := m.store.Delete(ctx, credstore.KeyUserID); err != nil {
		errs = append(errs, fmt.Errorf("delete user id: %w", err))
	}
	m.disconnectRealtime()
	m.setUser(nil)
	m.log.Info("session ended")
	return errors.Join(errs...)
}

// Restore resumes a session from stored credentials. Missing credentials are
// not an error: the manager just stays logged out. An expired token or one
// the server rejects ends the session. Transport failures keep the stored
// credentials and are returned so the caller can retry.
func (m *Manager) Restore(ctx context.Context) (*api.User, error) {
	token, err := m.get(ctx, credstore.KeyToken)
	if err != nil {
		return nil, err
	}
	userID, err := m.get(ctx, credstore.KeyUserID)
	if err != nil {
		return nil, err
	}
	if token == "" || userID == "" {
		return nil, nil
	}

	if expired, err := TokenExpired(token, m.now()); err != nil {
		m.log.Debug("token expiry unknown", zap.Error(err))
	} else if expired {
		m.log.Info("stored token expired")
		return nil, m.Logout(ctx)
	}

	user, err := m.users.CurrentUser(ctx)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) || errors.Is(err, api.ErrUnauthenticated) {
			m.log.Info("stored session rejected", zap.Error(err))
			return nil, m.Logout(ctx)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	m.setUser(user)
	m.log.Info("session restored", zap.String("userId", user.ID))
	m.connectRealtime(ctx)
	return user, nil
}

// Refresh reloads the profile when a token is stored. Failures keep the
// current user.
func (m *Manager) Refresh(ctx context.Context) error {
	token, err := m.get(ctx, credstore.KeyToken)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	user, err := m.users.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("refresh user: %w", err)
	}
	m.setUser(user)
	return nil
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (m *Manager) CurrentUser() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// IsAuthenticated reports whether a user is loaded.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// OnChange registers fn to run after every login, refresh, restore or
// logout. fn receives nil on logout.
func (m *Manager) OnChange(fn func(*api.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Manager) setUser(u *api.User) {
	m.mu.Lock()
	m.user = u
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		if u == nil {
			fn(nil)
			continue
		}
		cp := *u
		fn(&cp)
	}
}

// get reads key, mapping ErrNotFound to "".
func (m *Manager) get(ctx context.Context, key string) (string, error) {
	v, err := m.store.Get(ctx, key)
	if errors.Is(err, credstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func (m *Manager) disconnectRealtime() {
	if m.realtime == nil {
		return
	}
	if err := m.realtime.Disconnect(); err != nil {
		m.log.Warn("realtime disconnect failed", zap.Error(err))
	}
}

func (m *Manager) connectRealtime(ctx context.Context) {
	if m.realtime == nil {
		return
	}
	if err := m.realtime.Connect(ctx); err != nil {
		m.log.Warn("realtime connect failed", zap.Error(err))
	}
}

// TokenExpired reports whether a JWT's exp claim is before now. The signature
// is not checked; the server stays the authority. Tokens without exp never
// expire. A token that is not a JWT returns an error.
func TokenExpired(token string, now time.Time) (bool, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, fmt.Errorf("read exp: %w", err)
	}
	if exp == nil {
		return false, nil
	}
	return !now.Before(exp.Time), nil
}
