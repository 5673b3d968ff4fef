package domain

import (
	"time"

	"github.com/google/uuid"
)

// Real-time event names pushed to clients over the call socket
const (
	EventIncomingCall        = "incoming-call"
	EventParticipantJoined   = "participant-joined"
	EventParticipantRejected = "participant-rejected"
	EventParticipantLeft     = "participant-left"
	EventCallCancelled       = "cancelled"
	EventCallTypeChanged     = "type-changed"
	EventMediaKindUpgraded   = "type-upgraded"
	EventOffer               = "offer"
	EventAnswer              = "answer"
	EventICECandidate        = "ice-candidate"
	EventToggleAudio         = "toggle-audio"
	EventToggleVideo         = "toggle-video"
	EventScreenShare         = "screen-share"
)

// Event is the envelope for every server-pushed real-time event. Data is
// event-specific and delivered verbatim; signaling payloads are never
// interpreted.
type Event struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	SenderID  uuid.UUID              `json:"sender_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	// ExcludeSender marks room broadcasts that must not echo back to the
	// originating connection (media toggles, untargeted ICE).
	ExcludeSender bool `json:"exclude_sender,omitempty"`
}

// NewEvent builds an event envelope stamped with the current time
func NewEvent(eventType, roomID string, senderID uuid.UUID, data map[string]interface{}) *Event {
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		SenderID:  senderID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
