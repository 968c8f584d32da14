// Package session tracks the authenticated shopper of this storefront.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/pkg/jwt"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
)

// User is the authenticated shopper.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// CartTracker is the part of the cart synchronizer the session drives.
type CartTracker interface {
	SetUser(userID string)
	Logout(ctx context.Context) error
}

// Manager holds at most one shopper session.
type Manager struct {
	tokens *jwt.Manager
	cart   CartTracker

	mu    sync.RWMutex
	user  User
	token string
}

// NewManager creates a Manager validating tokens with tokens.
func NewManager(tokens *jwt.Manager, cart CartTracker) *Manager {
	return &Manager{tokens: tokens, cart: cart}
}

// Login validates token and makes its subject the current shopper. The cart
// synchronizer is pointed at the new user, which schedules a refresh.
func (m *Manager) Login(ctx context.Context, token string) (User, error) {
	claims, err := m.tokens.Validate(token)
	if err != nil {
		return User{}, fmt.Errorf("login: %w", err)
	}
	u := User{ID: claims.UserID, Username: claims.Username, Email: claims.Email}
	m.mu.Lock()
	m.user = u
	m.token = token
	m.mu.Unlock()

	m.cart.SetUser(u.ID)
	lg := pkglog.Ctx(ctx)
	lg.Info().Str(pkglog.FieldUserID, u.ID).Str(pkglog.FieldUsername, u.Username).Msg("shopper logged in")
	return u, nil
}

// Logout ends the session. The backend logout runs while the token is still
// available to the cart backend.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.RLock()
	u := m.user
	m.mu.RUnlock()
	if u.ID == "" {
		return domain.ErrNoSession
	}

	err := m.cart.Logout(ctx)

	m.mu.Lock()
	m.user = User{}
	m.token = ""
	m.mu.Unlock()

	l := pkglog.Ctx(ctx).With().Str(pkglog.FieldUserID, u.ID).Logger()
	if err != nil {
		l.Warn().Err(err).Msg("backend logout failed, local session cleared")
		return err
	}
	l.Info().Msg("shopper logged out")
	return nil
}

// Current returns the shopper, if any.
func (m *Manager) Current() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.user.ID != ""
}

// Token returns the raw bearer token of the session, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}
