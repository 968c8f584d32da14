package domain

import (
	"sort"
	"strings"
)

// SessionState is the broadcast lifecycle of a live session. Values are
// ordered: a session only ever moves forward.
type SessionState int

const (
	SessionNotStarted SessionState = iota
	SessionStarted
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionNotStarted:
		return "NOT_STARTED"
	case SessionStarted:
		return "STARTED"
	case SessionStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSessionState maps a provider lifecycle string onto a SessionState.
// Both our names and the provider's HLS vocabulary are accepted.
func ParseSessionState(v string) (SessionState, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "NOT_STARTED", "HLS_STARTING":
		return SessionNotStarted, true
	case "STARTED", "HLS_STARTED", "HLS_PLAYABLE":
		return SessionStarted, true
	case "STOPPED", "HLS_STOPPING", "HLS_STOPPED":
		return SessionStopped, true
	default:
		return SessionNotStarted, false
	}
}

// Mode is a participant's role in the session.
type Mode string

const (
	ModeConference Mode = "CONFERENCE" // speaker on the stage grid
	ModeViewer     Mode = "VIEWER"     // HLS audience with chat
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeConference || m == ModeViewer
}

// MediaState is what a participant is currently publishing.
type MediaState struct {
	Webcam bool `json:"webcam"`
	Mic    bool `json:"mic"`
}

// Participant is one member of a live session as reported by the provider.
type Participant struct {
	ID          string     `json:"id"`
	Mode        Mode       `json:"mode"`
	DisplayName string     `json:"display_name"`
	Media       MediaState `json:"media"`
}

// SortParticipants orders participants by ID in place.
func SortParticipants(ps []Participant) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}

// LiveView is what the live page renders.
type LiveView struct {
	RoomID           string        `json:"room_id"`
	State            SessionState  `json:"state"`
	HLSURL           string        `json:"hls_url,omitempty"`
	Speakers         []Participant `json:"speakers"`
	Viewers          []Participant `json:"viewers"`
	ParticipantCount int           `json:"participant_count"`
}
