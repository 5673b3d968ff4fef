package cassandra

import (
	"fmt"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"chatlink-backend/internal/domain"
)

// MessageRepository handles message storage in Cassandra.
// Partitions are bucketed by month so busy conversations stay bounded.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// Save inserts a new message
func (r *MessageRepository) Save(message *domain.Message) error {
	if message.Bucket == 0 {
		message.Bucket = domain.CalculateBucket(message.CreatedAt)
	}
	if message.MessageID == uuid.Nil {
		message.MessageID = uuid.New()
	}

	query := `
		INSERT INTO messages (
			conversation_id, bucket, message_id, sender_id, content,
			message_type, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		message.ConversationID,
		message.Bucket,
		message.MessageID,
		message.SenderID,
		message.Content,
		message.MessageType,
		message.Metadata,
		message.CreatedAt,
	).Exec()

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// GetByConversation retrieves messages for a conversation bucket with
// cursor-based pagination
func (r *MessageRepository) GetByConversation(conversationID uuid.UUID, bucket, limit int, pageState []byte) ([]*domain.Message, []byte, error) {
	query := `
		SELECT conversation_id, bucket, message_id, sender_id, content,
		       message_type, metadata, created_at
		FROM messages
		WHERE conversation_id = ? AND bucket = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	iter := r.session.Query(query, conversationID, bucket, limit).PageState(pageState).Iter()

	var messages []*domain.Message
	for {
		m := &domain.Message{}
		if !iter.Scan(
			&m.ConversationID, &m.Bucket, &m.MessageID, &m.SenderID,
			&m.Content, &m.MessageType, &m.Metadata, &m.CreatedAt,
		) {
			break
		}
		messages = append(messages, m)
	}

	nextPageState := iter.PageState()
	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return messages, nextPageState, nil
}
