package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/fmea-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type updateQuery = *bun.UpdateQuery

// Repository handles user data persistence
type Repository struct {
	conn database.Connector
}

func NewRepository(conn database.Connector) *Repository {
	return &Repository{conn: conn}
}

// Create inserts a new user. ID and timestamps are filled in when empty.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	dbUser := mapModelToDBUser(u)

	_, err = db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", NormalizeEmail(email))
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByVerificationToken retrieves an unverified user holding the given token
func (r *Repository) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return r.getOne(ctx, "verification_token = ? AND email_verified = FALSE", token)
}

func (r *Repository) getOne(ctx context.Context, where string, args ...any) (*User, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	dbUser := new(database.User)
	err = db.NewSelect().
		Model(dbUser).
		Where(where, args...).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// MarkEmailAsVerified marks the email verified only while token is still the
// current, unexpired verification token. ErrNotFound means it was replaced,
// expired or already used.
func (r *Repository) MarkEmailAsVerified(ctx context.Context, userID uuid.UUID, token string, now time.Time) error {
	return r.update(ctx, "mark email as verified", func(q updateQuery) updateQuery {
		return q.
			Set("email_verified = ?", true).
			Set("verification_token = NULL").
			Set("verification_expires_at = NULL").
			Where("id = ?", userID).
			Where("verification_token = ?", token).
			Where("verification_expires_at > ?", now)
	})
}

// UpdateVerificationToken replaces the verification token of an unverified user
func (r *Repository) UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	return r.update(ctx, "update verification token", func(q updateQuery) updateQuery {
		return q.
			Set("verification_token = ?", token).
			Set("verification_expires_at = ?", expiresAt).
			Where("id = ?", userID).
			Where("email_verified = ?", false)
	})
}

// SetOTP stores a one-time code and its expiry, replacing any previous code
func (r *Repository) SetOTP(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error {
	return r.update(ctx, "set otp", func(q updateQuery) updateQuery {
		return q.
			Set("otp_code = ?", code).
			Set("otp_expires_at = ?", expiresAt).
			Where("id = ?", userID)
	})
}

// ConsumeOTP clears the code if it still matches and has not expired.
// ErrNotFound means the code was already used, replaced or expired.
func (r *Repository) ConsumeOTP(ctx context.Context, userID uuid.UUID, code string, now time.Time) error {
	return r.update(ctx, "consume otp", func(q updateQuery) updateQuery {
		return q.
			Set("otp_code = NULL").
			Set("otp_expires_at = NULL").
			Where("id = ?", userID).
			Where("otp_code = ?", code).
			Where("otp_expires_at > ?", now)
	})
}

// UpdatePassword updates a user's password hash and drops any pending OTP
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.update(ctx, "update password", func(q updateQuery) updateQuery {
		return q.
			Set("password_hash = ?", passwordHash).
			Set("otp_code = NULL").
			Set("otp_expires_at = NULL").
			Where("id = ?", userID)
	})
}

// UpdateProfile applies the non-nil fields of p and returns the updated user
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, p ProfileUpdate) (*User, error) {
	if p.Empty() {
		return r.GetByID(ctx, userID)
	}

	err := r.update(ctx, "update profile", func(q updateQuery) updateQuery {
		if p.Name != nil {
			q = q.Set("name = ?", *p.Name)
		}
		if p.Phone != nil {
			q = q.Set("phone = ?", nullString(*p.Phone))
		}
		if p.Address != nil {
			q = q.Set("address = ?", nullString(*p.Address))
		}
		if p.Avatar != nil {
			q = q.Set("avatar_url = ?", nullString(p.Avatar.URL)).
				Set("avatar_key = ?", nullString(p.Avatar.Key))
		}
		return q.Where("id = ?", userID)
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, userID)
}

// SetRole changes the role of the account registered under email
func (r *Repository) SetRole(ctx context.Context, email string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	err = r.update(ctx, "set role", func(q updateQuery) updateQuery {
		return q.Set("role = ?", string(role)).Where("id = ?", u.ID)
	})
	if err != nil {
		return nil, err
	}

	u.Role = role
	return u, nil
}

// update runs an UPDATE on users and maps zero affected rows to ErrNotFound
func (r *Repository) update(ctx context.Context, op string, build func(q updateQuery) updateQuery) error {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return err
	}

	q := db.NewUpdate().
		Model((*database.User)(nil)).
		Set("updated_at = ?", time.Now().UTC())

	result, err := build(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mapModelToDBUser(u *User) *database.User {
	dbu := &database.User{
		ID:                    u.ID,
		Name:                  u.Name,
		Email:                 NormalizeEmail(u.Email),
		PasswordHash:          u.PasswordHash,
		Role:                  string(u.Role),
		Phone:                 nullString(u.Phone),
		Address:               nullString(u.Address),
		EmailVerified:         u.EmailVerified,
		VerificationToken:     u.VerificationToken,
		VerificationExpiresAt: u.VerificationExpiresAt,
		OTPCode:               u.OTPCode,
		OTPExpiresAt:          u.OTPExpiresAt,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
	if u.Avatar != nil {
		dbu.AvatarURL = nullString(u.Avatar.URL)
		dbu.AvatarKey = nullString(u.Avatar.Key)
	}
	return dbu
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	u := &User{
		ID:                    dbu.ID,
		Name:                  dbu.Name,
		Email:                 dbu.Email,
		PasswordHash:          dbu.PasswordHash,
		Role:                  Role(dbu.Role),
		Phone:                 deref(dbu.Phone),
		Address:               deref(dbu.Address),
		EmailVerified:         dbu.EmailVerified,
		VerificationToken:     dbu.VerificationToken,
		VerificationExpiresAt: dbu.VerificationExpiresAt,
		OTPCode:               dbu.OTPCode,
		OTPExpiresAt:          dbu.OTPExpiresAt,
		CreatedAt:             dbu.CreatedAt,
		UpdatedAt:             dbu.UpdatedAt,
	}
	if dbu.AvatarURL != nil {
		u.Avatar = &Avatar{URL: *dbu.AvatarURL, Key: deref(dbu.AvatarKey)}
	}
	return u
}
