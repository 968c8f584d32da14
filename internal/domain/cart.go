package domain

// CartItem is one cart line. Money is integer VND everywhere.
type CartItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// Subtotal is Quantity × UnitPrice.
func (i CartItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// CartSnapshot is a point-in-time copy of a user's cart, in backend order.
// Snapshots are never mutated after construction; refreshes swap in a new one.
type CartSnapshot struct {
	UserID string     `json:"user_id"`
	Items  []CartItem `json:"items"`
}

// EmptySnapshot is the snapshot of an unauthenticated visitor.
func EmptySnapshot() CartSnapshot {
	return CartSnapshot{Items: []CartItem{}}
}

// Count is the badge number shown for a cart: the total quantity of all lines.
func (s CartSnapshot) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Total is the sum of all line subtotals.
func (s CartSnapshot) Total() int64 {
	var t int64
	for _, it := range s.Items {
		t += it.Subtotal()
	}
	return t
}

// Equal reports whether two snapshots hold the same lines in the same order.
func (s CartSnapshot) Equal(o CartSnapshot) bool {
	if s.UserID != o.UserID || len(s.Items) != len(o.Items) {
		return false
	}
	for i := range s.Items {
		if s.Items[i] != o.Items[i] {
			return false
		}
	}
	return true
}

// CartCountChanged is published after every applied refresh.
type CartCountChanged struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}
