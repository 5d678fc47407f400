package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/storage"
	"github.com/redmonkez12/fmea-api/internal/user"
)

// UserStore is the credential store
type UserStore interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*user.User, error)
	MarkEmailAsVerified(ctx context.Context, userID uuid.UUID, token string, now time.Time) error
	UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	SetOTP(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, userID uuid.UUID, code string, now time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// Mailer delivers account emails
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendOTPEmail(ctx context.Context, toEmail, name, code string, ttl time.Duration) error
	SendPasswordResetEmail(ctx context.Context, toEmail, name, token string) error
}

// ResetTokenStore keeps single-use password reset tokens
type ResetTokenStore interface {
	StorePasswordResetToken(ctx context.Context, userID uuid.UUID, token string) error
	ConsumePasswordResetToken(ctx context.Context, token string) (uuid.UUID, error)
}

// SessionStore tracks logged-out sessions
type SessionStore interface {
	RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsSessionRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AvatarResolver turns an avatar reference from a request into a stored avatar
type AvatarResolver interface {
	ResolveAvatar(ctx context.Context, ownerID uuid.UUID, ref string) (*user.Avatar, error)
}

// Options holds the lifetimes and policy switches of the service
type Options struct {
	SessionDuration      time.Duration
	OTPTTL               time.Duration
	VerificationTTL      time.Duration
	RequireVerifiedLogin bool
}

// Session is a freshly issued session token
type Session struct {
	Token     string
	ExpiresAt time.Time
	Claims    *TokenClaims
}

// RegisterOutcome tells the handler which branch of registration ran
type RegisterOutcome int

const (
	Registered RegisterOutcome = iota
	VerificationResent
)

type RegisterResult struct {
	User    *user.User
	Outcome RegisterOutcome
}

// Service handles authentication business logic
type Service struct {
	users    UserStore
	hasher   *PasswordHasher
	tokens   TokenService
	mailer   Mailer
	resets   ResetTokenStore
	sessions SessionStore
	avatars  AvatarResolver
	logger   *logging.Logger
	opts     Options
	now      func() time.Time
}

func NewService(
	users UserStore,
	hasher *PasswordHasher,
	tokens TokenService,
	mailer Mailer,
	resets ResetTokenStore,
	sessions SessionStore,
	avatars AvatarResolver,
	logger *logging.Logger,
	opts Options,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		resets:   resets,
		sessions: sessions,
		avatars:  avatars,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Register runs either variant of registration.
//
// A full registration on an email that already belongs to an unverified
// account resends the verification link instead of failing. On a verified
// account it fails with user.ErrDuplicateEmail.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*RegisterResult, error) {
	switch c := cmd.(type) {
	case FullRegistration:
		return s.register(ctx, c)
	case ResendVerification:
		u, err := s.ResendVerification(ctx, c.Email)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{User: u, Outcome: VerificationResent}, nil
	default:
		return nil, fmt.Errorf("unknown register command %T", cmd)
	}
}

func (s *Service) register(ctx context.Context, c FullRegistration) (*RegisterResult, error) {
	existing, err := s.users.GetByEmail(ctx, c.Email)
	switch {
	case err == nil:
		if existing.EmailVerified {
			return nil, user.ErrDuplicateEmail
		}
		if err := s.issueVerification(ctx, existing); err != nil {
			return nil, err
		}
		return &RegisterResult{User: existing, Outcome: VerificationResent}, nil
	case !errors.Is(err, user.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	passwordHash, err := s.hasher.Hash(c.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	token, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}
	expiresAt := s.now().Add(s.opts.VerificationTTL)

	newUser := &user.User{
		ID:                    uuid.New(),
		Name:                  c.Name,
		Email:                 c.Email,
		PasswordHash:          passwordHash,
		Role:                  c.Role,
		Phone:                 c.Phone,
		Address:               c.Address,
		VerificationToken:     &token,
		VerificationExpiresAt: &expiresAt,
	}

	if c.Avatar != "" {
		avatar, err := s.resolveAvatar(ctx, newUser.ID, c.Avatar)
		if err != nil {
			return nil, err
		}
		newUser.Avatar = avatar
	}

	created, err := s.users.Create(ctx, newUser)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// the account stays even if the email cannot be sent
	if err := s.mailer.SendVerificationEmail(ctx, created.Email, created.Name, token); err != nil {
		return nil, upstream("send verification email", err)
	}

	return &RegisterResult{User: created, Outcome: Registered}, nil
}

func (s *Service) resolveAvatar(ctx context.Context, ownerID uuid.UUID, ref string) (*user.Avatar, error) {
	if s.avatars == nil {
		return nil, invalid("avatar", "avatar uploads are not available")
	}

	avatar, err := s.avatars.ResolveAvatar(ctx, ownerID, ref)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidAvatar) {
			return nil, invalid("avatar", "%s", err.Error())
		}
		return nil, upstream("store avatar", err)
	}

	return avatar, nil
}

// ResendVerification overwrites the verification token of an unverified
// account and emails the new link
func (s *Service) ResendVerification(ctx context.Context, email string) (*user.User, error) {
	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}

	if u.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	if err := s.issueVerification(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) issueVerification(ctx context.Context, u *user.User) error {
	token, err := generateRandomToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	if err := s.users.UpdateVerificationToken(ctx, u.ID, token, s.now().Add(s.opts.VerificationTTL)); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// verified in the meantime
			return ErrAlreadyVerified
		}
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, u.Email, u.Name, token); err != nil {
		return upstream("send verification email", err)
	}

	return nil
}

// VerifyEmail consumes a verification token and marks the account verified
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return invalid("token", "verification token is required")
	}

	u, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to find user by token: %w", err)
	}

	now := s.now()
	if u.VerificationExpiresAt == nil || !now.Before(*u.VerificationExpiresAt) {
		return ErrVerificationTokenExpired
	}

	if err := s.users.MarkEmailAsVerified(ctx, u.ID, token, now); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}

	return nil
}

// Login authenticates either login variant and issues a session
func (s *Service) Login(ctx context.Context, cmd LoginCommand) (*Session, error) {
	switch c := cmd.(type) {
	case CredentialLogin:
		u, err := s.authenticate(ctx, c)
		if err != nil {
			return nil, err
		}
		return s.IssueSession(u)
	case OTPLogin:
		return s.VerifyOTP(ctx, c)
	default:
		return nil, ErrUnsupportedLoginMethod
	}
}

// Authenticate checks a credential login and returns the session claims it
// would carry. Nothing is written except a transparent rehash of legacy hashes.
func (s *Service) Authenticate(ctx context.Context, c CredentialLogin) (Identity, error) {
	u, err := s.authenticate(ctx, c)
	if err != nil {
		return Identity{}, err
	}
	return IdentityOf(u), nil
}

func (s *Service) authenticate(ctx context.Context, c CredentialLogin) (*user.User, error) {
	u, err := s.lookup(ctx, c.Email)
	if err != nil {
		return nil, err
	}

	ok, needsRehash := s.hasher.Verify(u.PasswordHash, c.Password)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if s.opts.RequireVerifiedLogin && !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if needsRehash {
		s.rehash(ctx, u, c.Password)
	}

	return u, nil
}

func (s *Service) rehash(ctx context.Context, u *user.User, password string) {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("failed to rehash password", "user_id", u.ID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, u.ID, passwordHash); err != nil {
		s.logger.Warn("failed to store rehashed password", "user_id", u.ID, "error", err)
		return
	}
	u.PasswordHash = passwordHash
}

// IssueSession mints a session token for u
func (s *Service) IssueSession(u *user.User) (*Session, error) {
	token, claims, err := s.tokens.CreateToken(IdentityOf(u), s.opts.SessionDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		Claims:    claims,
	}, nil
}

// RequestOTP stores a fresh one-time code on the account and emails it.
// A previous pending code is replaced.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}

	if err := s.users.SetOTP(ctx, u.ID, code, s.now().Add(s.opts.OTPTTL)); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}

	if err := s.mailer.SendOTPEmail(ctx, u.Email, u.Name, code, s.opts.OTPTTL); err != nil {
		return upstream("send otp email", err)
	}

	return nil
}

// VerifyOTP accepts a code that matches the stored one before its expiry,
// clears it and issues a session. Only verified accounts may log in this way.
func (s *Service) VerifyOTP(ctx context.Context, c OTPLogin) (*Session, error) {
	u, err := s.lookup(ctx, c.Email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if u.OTPCode == nil || u.OTPExpiresAt == nil ||
		subtle.ConstantTimeCompare([]byte(*u.OTPCode), []byte(c.Code)) != 1 ||
		!now.Before(*u.OTPExpiresAt) {
		return nil, ErrInvalidOTP
	}

	if !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if err := s.users.ConsumeOTP(ctx, u.ID, c.Code, now); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// used or replaced concurrently
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("failed to consume otp: %w", err)
	}

	return s.IssueSession(u)
}

// Logout revokes the session carried by token. Tokens that are already
// invalid or expired need no revocation.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil
	}

	if err := s.sessions.RevokeSession(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// UpdatePassword changes the password of a signed-in user after checking the
// current one
func (s *Service) UpdatePassword(ctx context.Context, userID uuid.UUID, req UpdatePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if ok, _ := s.hasher.Verify(u.PasswordHash, req.CurrentPassword); !ok {
		return ErrInvalidCredentials
	}

	return s.setPassword(ctx, userID, req.NewPassword)
}

// RequestPasswordReset emails a reset link when the account exists.
// Always returns nil to prevent email enumeration attacks.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	if err := s.resets.StorePasswordResetToken(ctx, u.ID, token); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, u.Email, u.Name, token); err != nil {
		s.logger.Warn("failed to send password reset email", "user_id", u.ID, "error", err)
	}

	return nil
}

// ResetPassword redeems a reset token and sets the new password
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	userID, err := s.resets.ConsumePasswordResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, ErrPasswordResetTokenNotFound) {
			return ErrPasswordResetTokenNotFound
		}
		return fmt.Errorf("failed to get password reset token: %w", err)
	}

	return s.setPassword(ctx, userID, req.NewPassword)
}

func (s *Service) setPassword(ctx context.Context, userID uuid.UUID, password string) error {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

func (s *Service) lookup(ctx context.Context, email string) (*user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
