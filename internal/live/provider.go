package live

import (
	"context"

	"github.com/weiawesome/seedling-live/internal/domain"
)

// EventType identifies a provider push.
type EventType int

const (
	EventParticipantJoined EventType = iota + 1
	EventParticipantLeft
	EventParticipantUpdated
	EventParticipants
	EventSessionState
	EventMessage
)

func (t EventType) String() string {
	switch t {
	case EventParticipantJoined:
		return "participant_joined"
	case EventParticipantLeft:
		return "participant_left"
	case EventParticipantUpdated:
		return "participant_updated"
	case EventParticipants:
		return "participants"
	case EventSessionState:
		return "session_state"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// IsRoster reports whether the event carries a participant roster.
func (t EventType) IsRoster() bool {
	switch t {
	case EventParticipantJoined, EventParticipantLeft, EventParticipantUpdated, EventParticipants:
		return true
	}
	return false
}

// ProviderEvent is one push from the streaming provider. Roster events carry
// the complete current participant set, never a delta.
type ProviderEvent struct {
	Type         EventType
	Participants []domain.Participant
	State        domain.SessionState
	HLSURL       string
	Message      domain.ChatMessage
}

// Provider is the real-time session transport.
type Provider interface {
	// Join enters roomID as self. Events arrive on the returned channel, in
	// order, until Leave is called; the channel is then closed.
	Join(ctx context.Context, roomID string, self domain.Participant) (<-chan ProviderEvent, error)

	// Leave exits the current room.
	Leave(ctx context.Context) error

	// Send publishes a side-channel message to the room.
	Send(ctx context.Context, msg domain.ChatMessage) error
}
