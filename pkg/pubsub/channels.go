package pubsub

import "fmt"

// Channel naming for live-session rooms. Every channel follows
// {prefix}:room:{roomID}:{stream} so that the Kafka driver can map it to a
// fixed topic keyed by room.
const (
	// Participant roster and broadcast lifecycle, published by the streaming side.
	ChannelRoomEvents = "live:room:%s:events"

	// Side-channel messages, published by every participant.
	ChannelRoomChat = "live:room:%s:chat"

	// Join/leave announcements, consumed by the streaming side to rebuild the roster.
	ChannelRoomPresence = "live:room:%s:presence"
)

// Event types carried on ChannelRoomEvents.
const (
	EventParticipantJoined  = "participant_joined"
	EventParticipantLeft    = "participant_left"
	EventParticipantUpdated = "participant_updated"
	EventParticipants       = "participants"
	EventSessionState       = "session_state"
)

// Event types carried on ChannelRoomChat.
const (
	EventMessage = "message"
)

// Event types carried on ChannelRoomPresence.
const (
	EventPresenceJoin  = "presence_join"
	EventPresenceLeave = "presence_leave"
)

// RoomEventsChannel returns the roster/lifecycle channel of a room.
func RoomEventsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomEvents, roomID)
}

// RoomChatChannel returns the side-channel of a room.
func RoomChatChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomChat, roomID)
}

// RoomPresenceChannel returns the presence channel of a room.
func RoomPresenceChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomPresence, roomID)
}

// Payloads.

// ParticipantPayload is one roster entry as reported by the streaming side.
type ParticipantPayload struct {
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	DisplayName string `json:"display_name"`
	Webcam      bool   `json:"webcam"`
	Mic         bool   `json:"mic"`
}

// ParticipantsPayload carries the full roster after a join/leave/update.
type ParticipantsPayload struct {
	Participants []ParticipantPayload `json:"participants"`
}

// SessionStatePayload is sent when the broadcast lifecycle changes.
// State uses the provider's HLS vocabulary (HLS_STARTING, HLS_STARTED, ...).
type SessionStatePayload struct {
	State  string `json:"state"`
	HLSUrl string `json:"hls_url,omitempty"`
}

// MessagePayload is a side-channel message.
type MessagePayload struct {
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix millis
}
