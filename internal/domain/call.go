package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallKind distinguishes two-party calls from conference calls
type CallKind string

const (
	CallKindDirect CallKind = "direct"
	CallKindGroup  CallKind = "group"
)

// MediaKind is the media type of a call
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// IsValid reports whether the media kind is one of the supported values
func (m MediaKind) IsValid() bool {
	return m == MediaKindAudio || m == MediaKindVideo
}

// CallStatus is the session-level aggregate status
type CallStatus string

const (
	CallStatusPending   CallStatus = "pending"
	CallStatusActive    CallStatus = "active"
	CallStatusEnded     CallStatus = "ended"
	CallStatusCancelled CallStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusEnded || s == CallStatusCancelled
}

// ParticipantStatus is a participant's own status within a session,
// independent of the session aggregate
type ParticipantStatus string

const (
	ParticipantCalling  ParticipantStatus = "calling"
	ParticipantRinging  ParticipantStatus = "ringing"
	ParticipantJoined   ParticipantStatus = "joined"
	ParticipantLeft     ParticipantStatus = "left"
	ParticipantRejected ParticipantStatus = "rejected"
	ParticipantMissed   ParticipantStatus = "missed"
	ParticipantBusy     ParticipantStatus = "busy"
)

// IsLive reports whether the participant still counts toward the call:
// invited and ringing, dialing out, or connected
func (s ParticipantStatus) IsLive() bool {
	return s == ParticipantCalling || s == ParticipantRinging || s == ParticipantJoined
}

// Participant is a user's membership record within a call session.
// At most one entry exists per user per session; departure is recorded
// by status, never by removal.
type Participant struct {
	UserID   uuid.UUID         `json:"user_id"`
	Status   ParticipantStatus `json:"status"`
	JoinedAt *time.Time        `json:"joined_at,omitempty"`
	LeftAt   *time.Time        `json:"left_at,omitempty"`
}

// CallSession is one call instance. It is the single source of truth for
// call membership; transport room membership is an ephemeral view of it.
type CallSession struct {
	RoomID       string        `json:"room_id"`
	Kind         CallKind      `json:"kind"`
	MediaKind    MediaKind     `json:"media_kind"`
	InitiatorID  uuid.UUID     `json:"initiator_id"`
	Participants []Participant `json:"participants"`
	Status       CallStatus    `json:"status"`
	LinkedChatID *uuid.UUID    `json:"linked_chat_id,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	ConnectedAt  *time.Time    `json:"connected_at,omitempty"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Duration     int           `json:"duration"` // seconds, 0 if never connected

	// Version is the optimistic-concurrency token for conditional updates.
	// Not part of the wire representation.
	Version int64 `json:"-"`
}

// Participant returns the entry for userID, or nil if the user was never
// part of this session
func (c *CallSession) Participant(userID uuid.UUID) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// ParticipantIDs returns the identities of every declared participant
func (c *CallSession) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for i := range c.Participants {
		ids = append(ids, c.Participants[i].UserID)
	}
	return ids
}

// JoinedCount returns the number of participants currently joined
func (c *CallSession) JoinedCount() int {
	n := 0
	for i := range c.Participants {
		if c.Participants[i].Status == ParticipantJoined {
			n++
		}
	}
	return n
}

// LiveCount returns the number of participants in a live status
// (calling, ringing, or joined)
func (c *CallSession) LiveCount() int {
	n := 0
	for i := range c.Participants {
		if c.Participants[i].Status.IsLive() {
			n++
		}
	}
	return n
}

// participantRank orders participant statuses so transitions stay monotonic:
// a participant never moves back to an earlier phase of the ring cycle.
func participantRank(s ParticipantStatus) int {
	switch s {
	case ParticipantCalling, ParticipantRinging:
		return 0
	case ParticipantJoined:
		return 1
	default: // left, rejected, missed, busy
		return 2
	}
}

// Transition moves the participant to the given status, stamping JoinedAt on
// the first entry into joined and LeftAt on the first entry into a departed
// status. It reports whether anything changed: repeating a transition, or
// attempting one that would move backwards, is a no-op rather than an error,
// which keeps every lifecycle handler idempotent under client retries.
func (p *Participant) Transition(to ParticipantStatus, at time.Time) bool {
	if p.Status == to {
		return false
	}
	if participantRank(to) < participantRank(p.Status) {
		return false
	}
	if participantRank(to) == participantRank(p.Status) && participantRank(to) == 2 {
		// departed statuses do not overwrite one another
		// (left stays left, rejected stays rejected)
		return false
	}
	p.Status = to
	switch to {
	case ParticipantJoined:
		if p.JoinedAt == nil {
			t := at
			p.JoinedAt = &t
		}
	case ParticipantLeft, ParticipantRejected, ParticipantMissed, ParticipantBusy:
		if p.LeftAt == nil {
			t := at
			p.LeftAt = &t
		}
	}
	return true
}

// Reinvite resets a departed participant back to ringing so the same user
// never has two entries in one session. Live participants are left alone.
func (p *Participant) Reinvite() bool {
	if p.Status.IsLive() {
		return false
	}
	p.Status = ParticipantRinging
	return true
}

// End moves the session to the given terminal status and stamps EndedAt and
// Duration. Calling it on an already-terminal session is a no-op.
func (c *CallSession) End(status CallStatus, at time.Time) bool {
	if c.Status.IsTerminal() {
		return false
	}
	c.Status = status
	t := at
	c.EndedAt = &t
	if c.ConnectedAt != nil {
		c.Duration = int(at.Sub(*c.ConnectedAt) / time.Second)
	}
	return true
}
