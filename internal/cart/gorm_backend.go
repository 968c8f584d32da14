package cart

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/pkg/log"
)

// CartItemModel is the GORM model for the cart_items table.
type CartItemModel struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      string    `gorm:"type:varchar(64);index;not null"`
	ProductID   string    `gorm:"type:varchar(64);not null"`
	ProductName string    `gorm:"type:varchar(200);not null"`
	Quantity    int       `gorm:"not null"`
	UnitPrice   int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for CartItemModel.
func (CartItemModel) TableName() string {
	return "cart_items"
}

// ToDomain converts CartItemModel to a domain cart line.
func (m *CartItemModel) ToDomain() domain.CartItem {
	return domain.CartItem{
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
	}
}

// ShopperSessionModel records storefront logouts.
type ShopperSessionModel struct {
	UserID      string `gorm:"type:varchar(64);primaryKey"`
	LoggedOutAt time.Time
}

// TableName specifies the table name for ShopperSessionModel.
func (ShopperSessionModel) TableName() string {
	return "shopper_sessions"
}

// GormBackend reads carts straight from the storefront database.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend creates a new GORM-based cart backend.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// Models lists the tables this backend needs migrated.
func Models() []interface{} {
	return []interface{}{&CartItemModel{}, &ShopperSessionModel{}}
}

// GetCart returns the user's lines in insertion order.
func (b *GormBackend) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	l := log.Ctx(ctx)

	var models []CartItemModel
	result := b.db.WithContext(ctx).
		Where("user_id = ? AND quantity > 0", userID).
		Order("created_at, id").
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldUserID, userID).Msg("failed to load cart from db")
		return nil, result.Error
	}

	items := make([]domain.CartItem, 0, len(models))
	for i := range models {
		items = append(items, models[i].ToDomain())
	}
	return items, nil
}

// Logout stamps the user's logout time.
func (b *GormBackend) Logout(ctx context.Context, userID string) error {
	model := ShopperSessionModel{UserID: userID, LoggedOutAt: time.Now()}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"logged_out_at"}),
	}).Create(&model).Error
}

// AddItem appends a line to the user's cart.
func (b *GormBackend) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	model := CartItemModel{
		UserID:      userID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
	}
	return b.db.WithContext(ctx).Create(&model).Error
}
