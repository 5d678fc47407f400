package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/fmea-api/internal/user"
)

// Config sets the limits applied by a Limiter
type Config struct {
	IPLimit       int           // requests per IP per purpose within IPWindow
	IPWindow      time.Duration
	EmailCooldown time.Duration // minimum gap between emails sent to one address
}

// DefaultConfig: 10 requests per 15 minutes per IP, 2 minute email cooldown
var DefaultConfig = Config{
	IPLimit:       10,
	IPWindow:      15 * time.Minute,
	EmailCooldown: 2 * time.Minute,
}

// Limiter implements fixed-window request counters and per-email cooldowns
// in Redis. Callers check first and record separately, so a rejected request
// does not extend its own window.
type Limiter struct {
	client *redis.Client
	cfg    Config
}

func NewLimiter(client *redis.Client, cfg Config) *Limiter {
	if cfg.IPLimit <= 0 {
		cfg.IPLimit = DefaultConfig.IPLimit
	}
	if cfg.IPWindow <= 0 {
		cfg.IPWindow = DefaultConfig.IPWindow
	}
	if cfg.EmailCooldown <= 0 {
		cfg.EmailCooldown = DefaultConfig.EmailCooldown
	}
	return &Limiter{client: client, cfg: cfg}
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func cooldownKey(purpose, email string) string {
	return fmt.Sprintf("ratelimit:cooldown:%s:%s", purpose, user.NormalizeEmail(email))
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its budget for purpose
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	val, err := l.client.Get(ctx, ipKey(purpose, ip)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return false, fmt.Errorf("malformed rate limit counter %q: %w", val, err)
	}

	return count >= l.cfg.IPLimit, nil
}

// RecordIPRequestWithPurpose counts one request. The window starts with the
// first request.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(purpose, ip)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.cfg.IPWindow).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return nil
}

// CheckEmailCooldown reports whether an email for purpose was sent to email recently
func (l *Limiter) CheckEmailCooldown(ctx context.Context, purpose, email string) (bool, error) {
	n, err := l.client.Exists(ctx, cooldownKey(purpose, email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return n > 0, nil
}

// SetEmailCooldown starts the cooldown for email
func (l *Limiter) SetEmailCooldown(ctx context.Context, purpose, email string) error {
	if err := l.client.Set(ctx, cooldownKey(purpose, email), "1", l.cfg.EmailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}
