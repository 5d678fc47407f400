package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrPasswordResetTokenNotFound = errors.New("invalid or expired reset token")

const defaultPasswordResetTTL = 1 * time.Hour

// PasswordResetRepository handles password reset token storage in Redis
type PasswordResetRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPasswordResetRepository creates a repository whose tokens live for ttl.
// A non-positive ttl falls back to one hour.
func NewPasswordResetRepository(client *redis.Client, ttl time.Duration) *PasswordResetRepository {
	if ttl <= 0 {
		ttl = defaultPasswordResetTTL
	}
	return &PasswordResetRepository{
		client: client,
		ttl:    ttl,
	}
}

// StorePasswordResetToken stores a password reset token for userID
func (r *PasswordResetRepository) StorePasswordResetToken(ctx context.Context, userID uuid.UUID, token string) error {
	err := r.client.Set(ctx, passwordResetKey(token), userID.String(), r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store password reset token: %w", err)
	}
	return nil
}

// ConsumePasswordResetToken returns the user ID for token and deletes it in
// the same round trip, so a token can be redeemed once
func (r *PasswordResetRepository) ConsumePasswordResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	userIDStr, err := r.client.GetDel(ctx, passwordResetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrPasswordResetTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get password reset token: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse user ID: %w", err)
	}

	return userID, nil
}

// passwordResetKey generates a Redis key for password reset tokens
func passwordResetKey(token string) string {
	// Hash the token for security
	return fmt.Sprintf("password_reset:%s", hashToken(token))
}
