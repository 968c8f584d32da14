package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Shopper (matches pkg/middleware keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService = "service"

	// Event bus
	FieldTopic = "topic"
	FieldToken = "token"

	// Live session
	FieldRoomID        = "room_id"
	FieldParticipantID = "participant_id"
	FieldSessionState  = "session_state"
	FieldMessageKind   = "message_kind"
	FieldClientID      = "client_id"
)
