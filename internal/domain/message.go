package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageTypeSystem marks messages synthesized by the server, such as
// call-started and call-ended records
const MessageTypeSystem = "system"

// Message represents a chat message entity.
// Maps to the Cassandra messages table, partitioned by conversation and a
// time bucket so long-lived conversations do not grow unbounded partitions.
type Message struct {
	MessageID      uuid.UUID         `json:"message_id" cql:"message_id"`
	ConversationID uuid.UUID         `json:"conversation_id" cql:"conversation_id"`
	Bucket         int               `json:"-" cql:"bucket"`
	SenderID       uuid.UUID         `json:"sender_id" cql:"sender_id"` // uuid.Nil for system messages
	Content        string            `json:"content" cql:"content"`
	MessageType    string            `json:"message_type" cql:"message_type"` // text, system
	Metadata       map[string]string `json:"metadata,omitempty" cql:"metadata"`
	CreatedAt      time.Time         `json:"created_at" cql:"created_at"`
}

// CalculateBucket returns the partition bucket for a timestamp, one bucket
// per calendar month
func CalculateBucket(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}
