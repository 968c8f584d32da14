package cart

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/pkg/database"
)

func newSQLiteBackend(t *testing.T) *GormBackend {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "cart.db"),
	})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	if err := database.AutoMigrate(db, Models()...); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return NewGormBackend(db)
}

func TestGormBackend(t *testing.T) {
	b := newSQLiteBackend(t)
	ctx := context.Background()

	t.Run("unknown user has an empty cart", func(t *testing.T) {
		items, err := b.GetCart(ctx, "nobody")
		if err != nil {
			t.Fatalf("GetCart: %v", err)
		}
		if items == nil || len(items) != 0 {
			t.Fatalf("items = %#v", items)
		}
	})

	t.Run("lines keep insertion order", func(t *testing.T) {
		for _, it := range teaAndMatcha {
			if err := b.AddItem(ctx, "u1", it); err != nil {
				t.Fatalf("AddItem: %v", err)
			}
		}
		if err := b.AddItem(ctx, "u2", domain.CartItem{ProductID: "9", ProductName: "Other", Quantity: 1, UnitPrice: 1}); err != nil {
			t.Fatalf("AddItem: %v", err)
		}

		items, err := b.GetCart(ctx, "u1")
		if err != nil {
			t.Fatalf("GetCart: %v", err)
		}
		snap := domain.CartSnapshot{UserID: "u1", Items: items}
		want := domain.CartSnapshot{UserID: "u1", Items: teaAndMatcha}
		if !snap.Equal(want) {
			t.Fatalf("cart = %+v, want %+v", items, teaAndMatcha)
		}
		if snap.Count() != 3 || snap.Total() != 220000 {
			t.Errorf("count = %d total = %d", snap.Count(), snap.Total())
		}
	})

	t.Run("logout is repeatable", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := b.Logout(ctx, "u1"); err != nil {
				t.Fatalf("Logout #%d: %v", i+1, err)
			}
		}
	})
}
