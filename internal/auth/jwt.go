package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/user"
)

type jwtClaims struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Avatar        string `json:"avatar,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// JWTService issues HS256-signed session tokens
type JWTService struct {
	secret []byte
	now    func() time.Time
}

func NewJWTService(secret []byte) (*JWTService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(secret))
	}
	return &JWTService{secret: secret, now: time.Now}, nil
}

func (s *JWTService) CreateToken(id Identity, duration time.Duration) (string, *TokenClaims, error) {
	now := s.now()
	claims := &TokenClaims{
		Identity:  id,
		TokenID:   uuid.NewString(),
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(duration).Truncate(time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email:         id.Email,
		Name:          id.Name,
		Role:          string(id.Role),
		Avatar:        id.AvatarURL,
		EmailVerified: id.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims, nil
}

func (s *JWTService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	parsed := new(jwtClaims)
	_, err := jwt.ParseWithClaims(tokenStr, parsed, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(parsed.Subject)
	if err != nil || parsed.ID == "" || !user.Role(parsed.Role).Valid() {
		return nil, ErrInvalidToken
	}

	claims := &TokenClaims{
		Identity: Identity{
			UserID:        userID,
			Email:         parsed.Email,
			Name:          parsed.Name,
			Role:          user.Role(parsed.Role),
			AvatarURL:     parsed.Avatar,
			EmailVerified: parsed.EmailVerified,
		},
		TokenID:   parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}

	return claims, nil
}
