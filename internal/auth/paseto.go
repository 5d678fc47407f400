package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/user"
)

// PasetoService handles PASETO token creation and validation
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
	now          func() time.Time
}

func NewPasetoService(symmetricKey []byte) (*PasetoService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &PasetoService{
		symmetricKey: key,
		now:          time.Now,
	}, nil
}

// CreateToken generates a new PASETO v4.local token for id
func (s *PasetoService) CreateToken(id Identity, duration time.Duration) (string, *TokenClaims, error) {
	now := s.now()
	claims := &TokenClaims{
		Identity:  id,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(duration),
	}

	token := paseto.NewToken()
	token.SetIssuedAt(claims.IssuedAt)
	token.SetExpiration(claims.ExpiresAt)
	token.SetJti(claims.TokenID)
	token.SetSubject(id.UserID.String())
	token.SetString("email", id.Email)
	token.SetString("name", id.Name)
	token.SetString("role", string(id.Role))
	token.SetString("avatar", id.AvatarURL)
	if err := token.Set("email_verified", id.EmailVerified); err != nil {
		return "", nil, fmt.Errorf("set claim: %w", err)
	}

	return token.V4Encrypt(s.symmetricKey, nil), claims, nil
}

// VerifyToken decrypts a v4.local token and returns the claims.
// Expiry is checked here against the service clock so it can be told apart
// from other failures.
func (s *PasetoService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrExpiredToken
	}

	subject, err := token.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &TokenClaims{ExpiresAt: expiresAt}
	claims.UserID = userID

	if claims.TokenID, err = token.GetJti(); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt, err = token.GetIssuedAt(); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Email, err = token.GetString("email"); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Name, err = token.GetString("name"); err != nil {
		return nil, ErrInvalidToken
	}

	role, err := token.GetString("role")
	if err != nil || !user.Role(role).Valid() {
		return nil, ErrInvalidToken
	}
	claims.Role = user.Role(role)

	// CreateToken always writes both, an empty avatar included
	if claims.AvatarURL, err = token.GetString("avatar"); err != nil {
		return nil, ErrInvalidToken
	}
	if err := token.Get("email_verified", &claims.EmailVerified); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
