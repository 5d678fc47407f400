package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRepository keeps a denylist of logged-out session tokens in Redis.
// Entries expire together with the token they block.
type SessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// getRevokedKey generates the Redis key for a revoked session marker
func getRevokedKey(tokenID string) string {
	return fmt.Sprintf("session:revoked:%s", hashToken(tokenID))
}

// RevokeSession blocks the session with tokenID until expiresAt
func (r *SessionRepository) RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// already unusable
		return nil
	}

	if err := r.client.Set(ctx, getRevokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// IsSessionRevoked reports whether tokenID is on the denylist
func (r *SessionRepository) IsSessionRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, getRevokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}
