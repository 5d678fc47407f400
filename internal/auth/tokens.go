package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/user"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is the claim set carried by a session
type Identity struct {
	UserID        uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          user.Role `json:"role"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
}

// IdentityOf builds the session claims for u
func IdentityOf(u *user.User) Identity {
	return Identity{
		UserID:        u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		AvatarURL:     u.AvatarURL(),
		EmailVerified: u.EmailVerified,
	}
}

// TokenClaims is a verified session token
type TokenClaims struct {
	Identity
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService creates and validates session tokens.
// Implementations are PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(id Identity, duration time.Duration) (string, *TokenClaims, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// NewTokenService picks the implementation for the configured format
func NewTokenService(format string, secret []byte) (TokenService, error) {
	var (
		svc TokenService
		err error
	)

	switch format {
	case "paseto":
		svc, err = NewPasetoService(secret)
	case "jwt":
		svc, err = NewJWTService(secret)
	default:
		return nil, fmt.Errorf("unsupported token format %q", format)
	}
	if err != nil {
		return nil, err
	}

	return svc, nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

var otpRange = big.NewInt(900000)

// generateOTP draws a code uniformly from [100000, 999999]
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// hashToken returns the hex SHA-256 of a token for use in storage keys
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
