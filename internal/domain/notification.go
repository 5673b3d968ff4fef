package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification types produced by the call coordinator
const (
	NotificationTypeIncomingCall = "incoming_call"
	NotificationTypeMissedCall   = "missed_call"
	NotificationTypeCallEnded    = "call_ended"
)

// Notification represents a queued user notification.
// Maps to CockroachDB notifications table. Rows are written for targets
// with no live connection and drained by the push pass.
type Notification struct {
	NotificationID uuid.UUID              `json:"notification_id" db:"notification_id"`
	UserID         uuid.UUID              `json:"user_id" db:"user_id"`
	Type           string                 `json:"type" db:"type"`
	Title          string                 `json:"title" db:"title"`
	Body           string                 `json:"body" db:"body"`
	Data           map[string]interface{} `json:"data,omitempty" db:"data"`
	RoomID         *string                `json:"room_id,omitempty" db:"room_id"`
	IsRead         bool                   `json:"is_read" db:"is_read"`
	IsPushed       bool                   `json:"is_pushed" db:"is_pushed"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
}

// NotificationCreate represents data needed to create a notification.
// RoomID participates in the per-call uniqueness constraint, which makes
// repeated missed-call passes idempotent per participant.
type NotificationCreate struct {
	UserID uuid.UUID
	Type   string
	Title  string
	Body   string
	Data   map[string]interface{}
	RoomID *string
}
