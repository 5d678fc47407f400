package auth

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/fmea-api/internal/user"
)

func fullRegistration(email string) FullRegistration {
	return FullRegistration{
		Name:     "Alice",
		Email:    email,
		Password: "correct-horse",
		Role:     user.RoleAdmin,
	}
}

func TestService_RegisterAndVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Register(ctx, fullRegistration("alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, Registered, res.Outcome)
	assert.False(t, res.User.EmailVerified)
	assert.Equal(t, user.RoleAdmin, res.User.Role)
	assert.NotEqual(t, "correct-horse", res.User.PasswordHash)

	token := env.mailer.verifications["alice@example.com"]
	require.NotEmpty(t, token)

	require.NoError(t, env.svc.VerifyEmail(ctx, token))
	stored := env.users.get(res.User.ID)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationToken)
	assert.Nil(t, stored.VerificationExpiresAt)

	// single use
	assert.ErrorIs(t, env.svc.VerifyEmail(ctx, token), ErrInvalidVerificationToken)
}

func TestService_VerifyEmail_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, fullRegistration("alice@example.com"))
	require.NoError(t, err)
	token := env.mailer.verifications["alice@example.com"]

	env.clock.Advance(61 * time.Minute)
	assert.ErrorIs(t, env.svc.VerifyEmail(ctx, token), ErrVerificationTokenExpired)
}

func TestService_VerifyEmail_TokenReplacedDuringVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Register(ctx, fullRegistration("alice@example.com"))
	require.NoError(t, err)
	staleToken := env.mailer.verifications["alice@example.com"]

	// a resend lands between the token lookup and the update
	env.users.afterTokenLookup = func(u *user.User) {
		env.users.afterTokenLookup = nil
		_, err := env.svc.ResendVerification(ctx, u.Email)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, env.svc.VerifyEmail(ctx, staleToken), ErrInvalidVerificationToken)
	assert.False(t, env.users.get(res.User.ID).EmailVerified)

	freshToken := env.mailer.verifications["alice@example.com"]
	require.NotEqual(t, staleToken, freshToken)
	assert.NoError(t, env.svc.VerifyEmail(ctx, freshToken))
	assert.True(t, env.users.get(res.User.ID).EmailVerified)
}

func TestService_Register_Duplicate(t *testing.T) {
	t.Run("verified account conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "alice@example.com", "correct-horse", user.RoleUser, true)

		_, err := env.svc.Register(context.Background(), fullRegistration("alice@example.com"))
		assert.ErrorIs(t, err, user.ErrDuplicateEmail)
		assert.Zero(t, env.users.calls["Create"])
	})

	t.Run("unverified account gets a fresh link", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		first, err := env.svc.Register(ctx, fullRegistration("alice@example.com"))
		require.NoError(t, err)
		oldToken := env.mailer.verifications["alice@example.com"]

		second, err := env.svc.Register(ctx, fullRegistration("alice@example.com"))
		require.NoError(t, err)
		assert.Equal(t, VerificationResent, second.Outcome)
		assert.Equal(t, first.User.ID, second.User.ID)

		newToken := env.mailer.verifications["alice@example.com"]
		assert.NotEqual(t, oldToken, newToken)
		assert.ErrorIs(t, env.svc.VerifyEmail(ctx, oldToken), ErrInvalidVerificationToken)
		assert.NoError(t, env.svc.VerifyEmail(ctx, newToken))
	})
}

func TestService_ResendVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, ResendVerification{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	env.seedUser(t, "verified@example.com", "correct-horse", user.RoleUser, true)
	_, err = env.svc.Register(ctx, ResendVerification{Email: "verified@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyVerified)

	pending := env.seedUser(t, "pending@example.com", "correct-horse", user.RoleUser, false)
	res, err := env.svc.Register(ctx, ResendVerification{Email: "pending@example.com"})
	require.NoError(t, err)
	assert.Equal(t, VerificationResent, res.Outcome)
	assert.NotEmpty(t, env.mailer.verifications["pending@example.com"])
	assert.NotNil(t, env.users.get(pending.ID).VerificationToken)
}

func TestService_Register_MailFailureKeepsAccount(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errors.New("smtp unavailable")

	_, err := env.svc.Register(context.Background(), fullRegistration("alice@example.com"))
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = env.users.GetByEmail(context.Background(), "alice@example.com")
	assert.NoError(t, err)
}

func TestService_CredentialLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", "correct-horse", user.RoleAdmin, true)
	env.seedUser(t, "pending@example.com", "correct-horse", user.RoleUser, false)

	t.Run("correct password", func(t *testing.T) {
		id, err := env.svc.Authenticate(ctx, CredentialLogin{Email: "admin@example.com", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, admin.ID, id.UserID)
		assert.Equal(t, user.RoleAdmin, id.Role)

		session, err := env.svc.Login(ctx, CredentialLogin{Email: "admin@example.com", Password: "correct-horse"})
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)

		claims, err := env.tokens.VerifyToken(session.Token)
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, claims.Role)
		assert.True(t, claims.EmailVerified)
	})

	t.Run("wrong password", func(t *testing.T) {
		session, err := env.svc.Login(ctx, CredentialLogin{Email: "admin@example.com", Password: "wrong-horse"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, session)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := env.svc.Login(ctx, CredentialLogin{Email: "nobody@example.com", Password: "correct-horse"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unverified email", func(t *testing.T) {
		_, err := env.svc.Login(ctx, CredentialLogin{Email: "pending@example.com", Password: "correct-horse"})
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})
}

func TestService_CredentialLogin_VerificationOptional(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.RequireVerifiedLogin = false })
	env.seedUser(t, "pending@example.com", "correct-horse", user.RoleUser, false)

	session, err := env.svc.Login(context.Background(), CredentialLogin{Email: "pending@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.False(t, session.Claims.EmailVerified)
}

func TestService_LegacyBcryptHashIsUpgraded(t *testing.T) {
	env := newTestEnv(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	u := env.users.put(user.User{Email: "old@example.com", PasswordHash: string(legacy), Role: user.RoleUser, EmailVerified: true})

	_, err = env.svc.Login(context.Background(), CredentialLogin{Email: "old@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	stored := env.users.get(u.ID)
	assert.Contains(t, stored.PasswordHash, "$argon2id$")

	ok, _ := env.svc.hasher.Verify(stored.PasswordHash, "correct-horse")
	assert.True(t, ok)
}

func TestService_OTPLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "alice@example.com", "correct-horse", user.RoleUser, true)

	require.NoError(t, env.svc.RequestOTP(ctx, "alice@example.com"))
	code := env.mailer.otps["alice@example.com"]
	require.Len(t, code, 6)

	_, err := env.svc.Login(ctx, OTPLogin{Email: "alice@example.com", Code: wrongCode(code)})
	assert.ErrorIs(t, err, ErrInvalidOTP)

	session, err := env.svc.Login(ctx, OTPLogin{Email: "alice@example.com", Code: code})
	require.NoError(t, err)
	assert.Equal(t, u.ID, session.Claims.UserID)
	assert.Nil(t, env.users.get(u.ID).OTPCode)

	// single use
	_, err = env.svc.Login(ctx, OTPLogin{Email: "alice@example.com", Code: code})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestService_OTPExpiresAfterTenMinutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "alice@example.com", "correct-horse", user.RoleUser, true)

	require.NoError(t, env.svc.RequestOTP(ctx, "alice@example.com"))
	code := env.mailer.otps["alice@example.com"]

	env.clock.Advance(11 * time.Minute)

	_, err := env.svc.VerifyOTP(ctx, OTPLogin{Email: "alice@example.com", Code: code})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestService_OTPRequiresVerifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "pending@example.com", "correct-horse", user.RoleUser, false)

	require.NoError(t, env.svc.RequestOTP(ctx, "pending@example.com"))
	code := env.mailer.otps["pending@example.com"]

	_, err := env.svc.VerifyOTP(ctx, OTPLogin{Email: "pending@example.com", Code: code})
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestService_OTPUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	assert.ErrorIs(t, env.svc.RequestOTP(context.Background(), "nobody@example.com"), ErrNotFound)
	_, err := env.svc.VerifyOTP(context.Background(), OTPLogin{Email: "nobody@example.com", Code: "123456"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "alice@example.com", "correct-horse", user.RoleUser, true)

	err := env.svc.UpdatePassword(ctx, u.ID, UpdatePasswordRequest{CurrentPassword: "wrong-horse", NewPassword: "battery-staple"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = env.svc.UpdatePassword(ctx, u.ID, UpdatePasswordRequest{CurrentPassword: "correct-horse", NewPassword: "short"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "newPassword", verr.Field)

	require.NoError(t, env.svc.UpdatePassword(ctx, u.ID, UpdatePasswordRequest{CurrentPassword: "correct-horse", NewPassword: "battery-staple"}))

	_, err = env.svc.Login(ctx, CredentialLogin{Email: "alice@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Login(ctx, CredentialLogin{Email: "alice@example.com", Password: "battery-staple"})
	assert.NoError(t, err)
}

func TestService_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "alice@example.com", "correct-horse", user.RoleUser, true)

	require.NoError(t, env.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, env.mailer.resets)

	require.NoError(t, env.svc.RequestPasswordReset(ctx, "alice@example.com"))
	token := env.mailer.resets["alice@example.com"]
	require.NotEmpty(t, token)

	req := ResetPasswordRequest{Token: token, NewPassword: "battery-staple"}
	require.NoError(t, env.svc.ResetPassword(ctx, req))
	assert.ErrorIs(t, env.svc.ResetPassword(ctx, req), ErrPasswordResetTokenNotFound)

	_, err := env.svc.Login(ctx, CredentialLogin{Email: "alice@example.com", Password: "battery-staple"})
	assert.NoError(t, err)
}

func TestService_Logout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "alice@example.com", "correct-horse", user.RoleUser, true)

	session, err := env.svc.Login(ctx, CredentialLogin{Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, session.Token))

	revoked, err := env.sessions.IsSessionRevoked(ctx, session.Claims.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)

	// garbage and empty tokens are a no-op
	assert.NoError(t, env.svc.Logout(ctx, "not-a-token"))
	assert.NoError(t, env.svc.Logout(ctx, ""))
}

func TestGenerateOTP_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func wrongCode(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}
