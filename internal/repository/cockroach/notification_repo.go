package cockroach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatlink-backend/internal/domain"
)

// NotificationRepository handles queued-notification storage
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a notification. The table carries a unique index on
// (user_id, type, room_id), so re-running a missed-call pass for the same
// participant and call inserts nothing; the first row wins. Returns nil
// when the insert was deduplicated, so callers can tell a fresh row from
// a repeat pass.
func (r *NotificationRepository) Create(ctx context.Context, create *domain.NotificationCreate) (*domain.Notification, error) {
	notification := &domain.Notification{
		NotificationID: uuid.New(),
		UserID:         create.UserID,
		Type:           create.Type,
		Title:          create.Title,
		Body:           create.Body,
		Data:           create.Data,
		RoomID:         create.RoomID,
		CreatedAt:      time.Now(),
	}

	query := `
		INSERT INTO notifications (
			notification_id, user_id, type, title, body, data, room_id,
			is_read, is_pushed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, false, false, $8)
		ON CONFLICT (user_id, type, room_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		notification.NotificationID,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Body,
		notification.Data,
		notification.RoomID,
		notification.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	return notification, nil
}

// GetByUserID retrieves notifications for a user, newest first
func (r *NotificationRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Notification, error) {
	query := `
		SELECT notification_id, user_id, type, title, body, data, room_id,
		       is_read, is_pushed, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		err := rows.Scan(
			&n.NotificationID, &n.UserID, &n.Type, &n.Title, &n.Body,
			&n.Data, &n.RoomID, &n.IsRead, &n.IsPushed, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// GetUnpushed retrieves notifications not yet delivered as a push
func (r *NotificationRepository) GetUnpushed(ctx context.Context, limit int) ([]domain.Notification, error) {
	query := `
		SELECT notification_id, user_id, type, title, body, data, room_id,
		       is_read, is_pushed, created_at
		FROM notifications
		WHERE is_pushed = false
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unpushed notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		err := rows.Scan(
			&n.NotificationID, &n.UserID, &n.Type, &n.Title, &n.Body,
			&n.Data, &n.RoomID, &n.IsRead, &n.IsPushed, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkAsPushed records that the push pass delivered a notification
func (r *NotificationRepository) MarkAsPushed(ctx context.Context, notificationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_pushed = true WHERE notification_id = $1`,
		notificationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification as pushed: %w", err)
	}
	return nil
}

// MarkAsRead marks a notification as read by its owner
func (r *NotificationRepository) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE notification_id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}
