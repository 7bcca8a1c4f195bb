package ws

import "encoding/json"

// Inbound event types.
const (
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypeOffer     = "offer"     // point-to-point, relayed
	TypeAnswer    = "answer"    // point-to-point, relayed
	TypeCandidate = "candidate" // point-to-point, relayed
	TypeMute      = "mute"
	TypePing      = "ping"
)

// Outbound event types.
const (
	TypeJoinAck           = "join-ack"
	TypeParticipantJoined = "participant-joined"
	TypeParticipantLeft   = "participant-left"
	TypeMuteChanged       = "mute-changed"
	TypePong              = "pong"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type JoinPayload struct {
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name,omitempty"`
	Video       bool   `json:"video,omitempty"`
}

type JoinAckPayload struct {
	Success       bool   `json:"success"`
	SessionID     string `json:"session_id,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SignalPayload carries one negotiation message. Payload is opaque to the
// relay: forwarded byte for byte, never parsed.
type SignalPayload struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
}

type MutePayload struct {
	Muted bool `json:"muted"`
}

type MuteChangedPayload struct {
	ParticipantID string `json:"participant_id"`
	Muted         bool   `json:"muted"`
}

type ParticipantJoinedPayload struct {
	ParticipantID string `json:"participant_id"`
	ConnectionID  string `json:"connection_id"`
	DisplayName   string `json:"display_name,omitempty"`
	// ShouldInitiate tells the receiver whether it creates the negotiation
	// offer toward this peer. The lexicographically smaller participant ID
	// initiates, so both sides agree without a handshake.
	ShouldInitiate bool `json:"should_initiate"`
}

type ParticipantLeftPayload struct {
	ParticipantID string `json:"participant_id"`
}
