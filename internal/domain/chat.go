package domain

import (
	"fmt"
	"time"
)

// MessageKind discriminates side-channel messages.
type MessageKind string

const (
	KindChat             MessageKind = "chat"
	KindCartNotification MessageKind = "cart-notification"
)

// ParseMessageKind validates a wire kind.
func ParseMessageKind(v string) (MessageKind, error) {
	switch k := MessageKind(v); k {
	case KindChat, KindCartNotification:
		return k, nil
	default:
		return "", fmt.Errorf("unknown message kind %q", v)
	}
}

// ChatMessage is one side-channel message.
type ChatMessage struct {
	ID        string      `json:"id"`
	SenderID  string      `json:"sender_id"`
	Kind      MessageKind `json:"kind"`
	Text      string      `json:"text,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
