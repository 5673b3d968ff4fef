package cockroach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatlink-backend/internal/domain"
)

// uniqueViolation is the postgres error code raised when an insert hits the
// room_id primary key
const uniqueViolation = "23505"

// CallRepository persists call sessions in CockroachDB. Each session is one
// row keyed by room_id, with the participant list embedded as a JSONB
// document and a version column for conditional updates.
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

const callColumns = `room_id, kind, media_kind, initiator_id, status, participants,
       linked_chat_id, started_at, connected_at, ended_at, duration, version`

// Insert writes a brand-new session. A room_id collision returns
// domain.ErrRoomIDTaken so the caller can retry with a fresh candidate.
func (r *CallRepository) Insert(ctx context.Context, session *domain.CallSession) error {
	participants, err := json.Marshal(session.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	query := `
		INSERT INTO calls (
			room_id, kind, media_kind, initiator_id, status, participants,
			linked_chat_id, started_at, connected_at, ended_at, duration, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
	`

	_, err = r.pool.Exec(ctx, query,
		session.RoomID,
		session.Kind,
		session.MediaKind,
		session.InitiatorID,
		session.Status,
		participants,
		session.LinkedChatID,
		session.StartedAt,
		session.ConnectedAt,
		session.EndedAt,
		session.Duration,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrRoomIDTaken
		}
		return fmt.Errorf("failed to insert call: %w", err)
	}

	session.Version = 1
	return nil
}

// GetByRoomID retrieves a session by its room ID
func (r *CallRepository) GetByRoomID(ctx context.Context, roomID string) (*domain.CallSession, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE room_id = $1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return session, nil
}

// Update performs a conditional write: the row is only updated if its
// version still matches the one the session was read at, so two concurrent
// read-modify-write sequences cannot silently overwrite one another. A lost
// race returns domain.ErrVersionConflict and the caller re-reads.
func (r *CallRepository) Update(ctx context.Context, session *domain.CallSession) error {
	participants, err := json.Marshal(session.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	query := `
		UPDATE calls
		SET kind = $2, media_kind = $3, status = $4, participants = $5,
		    linked_chat_id = $6, connected_at = $7, ended_at = $8,
		    duration = $9, version = version + 1
		WHERE room_id = $1 AND version = $10
	`

	tag, err := r.pool.Exec(ctx, query,
		session.RoomID,
		session.Kind,
		session.MediaKind,
		session.Status,
		participants,
		session.LinkedChatID,
		session.ConnectedAt,
		session.EndedAt,
		session.Duration,
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update call: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a missing row
		var exists bool
		checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM calls WHERE room_id = $1)`, session.RoomID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to check call existence: %w", checkErr)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}

	session.Version++
	return nil
}

// SetLinkedChat stamps the lazily-resolved conversation onto the session.
// It touches a single column the lifecycle writers never change, so it does
// not participate in the version check; only the first writer wins.
func (r *CallRepository) SetLinkedChat(ctx context.Context, roomID string, conversationID uuid.UUID) error {
	query := `
		UPDATE calls
		SET linked_chat_id = $2
		WHERE room_id = $1 AND linked_chat_id IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, roomID, conversationID); err != nil {
		return fmt.Errorf("failed to set linked chat: %w", err)
	}
	return nil
}

// FindActiveForUser returns the non-terminal session in which the user has a
// live participant entry, or nil if there is none. This backs the
// one-active-call-per-user check.
func (r *CallRepository) FindActiveForUser(ctx context.Context, userID uuid.UUID) (*domain.CallSession, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE status IN ('pending', 'active')
		  AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(participants) AS p
			WHERE (p->>'user_id')::UUID = $1
			  AND p->>'status' IN ('calling', 'ringing', 'joined')
		  )
		ORDER BY started_at DESC
		LIMIT 1
	`

	session, err := scanSession(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active call: %w", err)
	}
	return session, nil
}

// ListForUser retrieves the user's call history, most recent first
func (r *CallRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.CallSession, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(participants) AS p
			WHERE (p->>'user_id')::UUID = $1
		)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CallSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*domain.CallSession, error) {
	session := &domain.CallSession{}
	var participants []byte

	err := row.Scan(
		&session.RoomID,
		&session.Kind,
		&session.MediaKind,
		&session.InitiatorID,
		&session.Status,
		&participants,
		&session.LinkedChatID,
		&session.StartedAt,
		&session.ConnectedAt,
		&session.EndedAt,
		&session.Duration,
		&session.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(participants, &session.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}

	return session, nil
}
