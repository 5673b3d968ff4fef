package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// presenceTTL bounds how stale a connection entry can get if a process dies
// without cleaning up; live connections refresh it via heartbeat
const presenceTTL = 5 * time.Minute

// clearIfOwner deletes the presence key only if it still holds the given
// connection ID, so a reconnect that raced the old socket's teardown is not
// knocked offline.
var clearIfOwner = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// PresenceRepository is the live user -> connection directory in Redis.
// Lookup is O(1); entries exist only while a socket is open.
type PresenceRepository struct {
	client *redis.Client
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *redis.Client) *PresenceRepository {
	return &PresenceRepository{client: client}
}

func connKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:conn:%s", userID)
}

// Register records the user's live connection
func (r *PresenceRepository) Register(ctx context.Context, userID uuid.UUID, connID string) error {
	if err := r.client.Set(ctx, connKey(userID), connID, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}
	if err := r.client.SAdd(ctx, "presence:online", userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}
	return nil
}

// Clear removes the user's connection entry if connID still owns it
func (r *PresenceRepository) Clear(ctx context.Context, userID uuid.UUID, connID string) error {
	deleted, err := clearIfOwner.Run(ctx, r.client, []string{connKey(userID)}, connID).Int()
	if err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	if deleted > 0 {
		if err := r.client.SRem(ctx, "presence:online", userID.String()).Err(); err != nil {
			return fmt.Errorf("failed to remove from online set: %w", err)
		}
	}
	return nil
}

// GetConnection returns the user's live connection ID, or "" if offline
func (r *PresenceRepository) GetConnection(ctx context.Context, userID uuid.UUID) (string, error) {
	connID, err := r.client.Get(ctx, connKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get connection: %w", err)
	}
	return connID, nil
}

// IsOnline checks whether the user currently has a live connection
func (r *PresenceRepository) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	exists, err := r.client.Exists(ctx, connKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return exists > 0, nil
}

// Heartbeat keeps the user's connection entry alive
func (r *PresenceRepository) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Expire(ctx, connKey(userID), presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// GetOnlineUsers retrieves the IDs of every online user
func (r *PresenceRepository) GetOnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	userIDStrs, err := r.client.SMembers(ctx, "presence:online").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}

	userIDs := make([]uuid.UUID, 0, len(userIDStrs))
	for _, idStr := range userIDStrs {
		userID, err := uuid.Parse(idStr)
		if err != nil {
			continue // Skip invalid entries
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, nil
}
