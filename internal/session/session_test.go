package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/pkg/jwt"
)

type fakeCart struct {
	mu        sync.Mutex
	users     []string
	logouts   int
	logoutErr error
	tokenSeen string
	token     func() string
}

func (f *fakeCart) SetUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

func (f *fakeCart) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	if f.token != nil {
		f.tokenSeen = f.token()
	}
	return f.logoutErr
}

func newManager(t *testing.T) (*Manager, *jwt.Manager, *fakeCart) {
	t.Helper()
	tokens, err := jwt.NewManager("test-secret", "seedling", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cart := &fakeCart{}
	m := NewManager(tokens, cart)
	cart.token = m.Token
	return m, tokens, cart
}

func TestLoginLogout(t *testing.T) {
	m, tokens, cart := newManager(t)
	ctx := context.Background()

	if _, ok := m.Current(); ok {
		t.Fatal("session present before login")
	}

	tok, err := tokens.Issue("u1", "lan", "lan@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	u, err := m.Login(ctx, tok)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != "u1" || u.Username != "lan" {
		t.Errorf("user = %+v", u)
	}
	if len(cart.users) != 1 || cart.users[0] != "u1" {
		t.Errorf("cart users = %v", cart.users)
	}
	if m.Token() != tok {
		t.Error("token not stored")
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if cart.logouts != 1 || cart.tokenSeen != tok {
		t.Errorf("logouts = %d, token seen = %q", cart.logouts, cart.tokenSeen)
	}
	if _, ok := m.Current(); ok {
		t.Error("session present after logout")
	}
	if err := m.Logout(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Errorf("second Logout = %v", err)
	}
}

func TestLoginRejectsBadTokens(t *testing.T) {
	m, _, cart := newManager(t)

	other, _ := jwt.NewManager("other-secret", "seedling", time.Hour)
	forged, _ := other.Issue("u1", "lan", "")

	for name, tok := range map[string]string{"garbage": "not-a-jwt", "wrong secret": forged, "empty": ""} {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Login(context.Background(), tok); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if len(cart.users) != 0 {
		t.Errorf("cart users = %v", cart.users)
	}
}

func TestLogoutClearsOnBackendError(t *testing.T) {
	m, tokens, cart := newManager(t)
	cart.logoutErr = errors.New("backend down")

	tok, _ := tokens.Issue("u1", "lan", "")
	if _, err := m.Login(context.Background(), tok); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := m.Logout(context.Background()); err == nil {
		t.Fatal("expected backend error")
	}
	if _, ok := m.Current(); ok {
		t.Error("session kept after failed backend logout")
	}
}
