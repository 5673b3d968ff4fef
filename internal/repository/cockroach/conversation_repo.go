package cockroach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatlink-backend/internal/domain"
)

// ConversationRepository handles conversation operations
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Create inserts a conversation and its participant rows in one transaction
func (r *ConversationRepository) Create(ctx context.Context, conversation *domain.Conversation, memberIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO conversations (conversation_id, type, name, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.Exec(ctx, query,
		conversation.ConversationID,
		conversation.Type,
		conversation.Name,
		conversation.CreatedBy,
		conversation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, userID := range memberIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			conversation.ConversationID, userID, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT conversation_id, type, name, created_by, created_at
		FROM conversations
		WHERE conversation_id = $1
	`

	conversation := &domain.Conversation{}
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(
		&conversation.ConversationID,
		&conversation.Type,
		&conversation.Name,
		&conversation.CreatedBy,
		&conversation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conversation, nil
}

// FindByExactMembers returns the conversation of the given type whose member
// set is exactly memberIDs, or nil if no such thread exists. This backs the
// single-thread-per-dyad (and per group member set) semantics.
func (r *ConversationRepository) FindByExactMembers(ctx context.Context, convType string, memberIDs []uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT c.conversation_id, c.type, c.name, c.created_by, c.created_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.conversation_id
		WHERE c.type = $1
		GROUP BY c.conversation_id, c.type, c.name, c.created_by, c.created_at
		HAVING count(*) FILTER (WHERE p.user_id = ANY($2)) = $3
		   AND count(*) = $3
		LIMIT 1
	`

	conversation := &domain.Conversation{}
	err := r.pool.QueryRow(ctx, query, convType, memberIDs, len(memberIDs)).Scan(
		&conversation.ConversationID,
		&conversation.Type,
		&conversation.Name,
		&conversation.CreatedBy,
		&conversation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find conversation by members: %w", err)
	}

	return conversation, nil
}

// GetMemberIDs returns the user IDs of every participant in a conversation
func (r *ConversationRepository) GetMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation members: %w", err)
	}
	defer rows.Close()

	var memberIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		memberIDs = append(memberIDs, userID)
	}

	return memberIDs, rows.Err()
}
