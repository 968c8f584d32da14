package domain

// WebSocket message types from client.
const (
	MsgTypePing        = "ping"
	MsgTypeChat        = "chat"
	MsgTypeCartChanged = "cart_changed"
)

// WebSocket message types to client.
const (
	MsgTypePong        = "pong"
	MsgTypeCartCount   = "cart_count"
	MsgTypeLiveState   = "live_state"
	MsgTypeChatMessage = "chat_message"
	MsgTypeError       = "error"
)

// Error codes.
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeNotConnected = "NOT_CONNECTED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// ChatSendMessage asks the daemon to relay a chat line.
type ChatSendMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Server -> Client messages

// CartCountMessage refreshes a cart badge.
type CartCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// LiveStateMessage carries the current live view.
type LiveStateMessage struct {
	Type string   `json:"type"`
	View LiveView `json:"view"`
}

// ChatMessageOut delivers one relayed chat line.
type ChatMessageOut struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

// ErrorMessage is sent when a client message fails.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, Code: code, Message: message}
}
