package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persistence model for the users table
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID                    uuid.UUID  `bun:"id,pk,type:uuid"`
	Name                  string     `bun:"name,notnull"`
	Email                 string     `bun:"email,notnull,unique"`
	PasswordHash          string     `bun:"password_hash,notnull"`
	Role                  string     `bun:"role,notnull"`
	Phone                 *string    `bun:"phone"`
	Address               *string    `bun:"address"`
	AvatarURL             *string    `bun:"avatar_url"`
	AvatarKey             *string    `bun:"avatar_key"`
	EmailVerified         bool       `bun:"email_verified,notnull"`
	VerificationToken     *string    `bun:"verification_token"`
	VerificationExpiresAt *time.Time `bun:"verification_expires_at"`
	OTPCode               *string    `bun:"otp_code"`
	OTPExpiresAt          *time.Time `bun:"otp_expires_at"`
	CreatedAt             time.Time  `bun:"created_at,notnull"`
	UpdatedAt             time.Time  `bun:"updated_at,notnull"`
}

// Equipment is the persistence model for the equipment table
type Equipment struct {
	bun.BaseModel `bun:"table:equipment"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid"`
	Tag            string     `bun:"tag,notnull,unique"`
	Name           string     `bun:"name,notnull"`
	EquipmentClass string     `bun:"equipment_class,notnull"`
	EquipmentType  string     `bun:"equipment_type,notnull"`
	Location       string     `bun:"location,notnull"`
	Criticality    int        `bun:"criticality,notnull"`
	CreatedBy      *uuid.UUID `bun:"created_by,type:uuid"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
}
