package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

var ErrInvalidRole = errors.New("role must be one of: admin, user")

// Profile field limits shared by registration and profile updates
const (
	MaxNameLen    = 100 // runes
	MaxPhoneLen   = 32  // bytes
	MaxAddressLen = 255 // runes
)

// ParseRole converts user input into a Role. Empty input defaults to RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Avatar references an image stored on the external image host
type Avatar struct {
	URL string `json:"url"`
	Key string `json:"-"` // object key on the image host, empty for external URLs
}

type User struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"` // Never expose password hash in JSON
	Role                  Role       `json:"role"`
	Phone                 string     `json:"phone,omitempty"`
	Address               string     `json:"address,omitempty"`
	Avatar                *Avatar    `json:"avatar,omitempty"`
	EmailVerified         bool       `json:"emailVerified"`
	VerificationToken     *string    `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	OTPCode               *string    `json:"-"`
	OTPExpiresAt          *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// AvatarURL returns the avatar URL or an empty string
func (u *User) AvatarURL() string {
	if u.Avatar == nil {
		return ""
	}
	return u.Avatar.URL
}

// ProfileUpdate holds the mutable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
	Avatar  *Avatar
}

// Empty reports whether the update changes nothing
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil && p.Avatar == nil
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
