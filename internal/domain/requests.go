package domain

// JoinLiveRequest is the body of POST /api/v1/live/join.
type JoinLiveRequest struct {
	RoomID        string `json:"room_id" binding:"required"`
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Mode          string `json:"mode"`
}

// SendChatRequest is the body of POST /api/v1/live/chat. Kind defaults to chat.
type SendChatRequest struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// AddCartItemRequest is the body of POST /api/v1/cart/items.
type AddCartItemRequest struct {
	ProductID   string `json:"product_id" binding:"required"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	UnitPrice   int64  `json:"unit_price" binding:"min=0"`
}

// CartResponse is returned by the cart endpoints.
type CartResponse struct {
	Cart  CartSnapshot `json:"cart"`
	Count int          `json:"count"`
	Total int64        `json:"total"`
}
