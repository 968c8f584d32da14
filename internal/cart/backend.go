package cart

import (
	"context"
	"errors"

	"github.com/weiawesome/seedling-live/internal/domain"
)

// Backend is the authoritative cart store.
type Backend interface {
	// GetCart returns the user's cart lines in display order.
	GetCart(ctx context.Context, userID string) ([]domain.CartItem, error)

	// Logout invalidates the user's storefront session.
	Logout(ctx context.Context, userID string) error
}

// ErrUnauthorized is returned when the backend rejects the shopper's credentials.
var ErrUnauthorized = errors.New("cart backend rejected credentials")

// Mutator is implemented by backends that accept cart writes.
type Mutator interface {
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
}
