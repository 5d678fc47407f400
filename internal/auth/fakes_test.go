package auth

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/user"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testArgon2Params = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// memUsers is an in-memory UserStore
type memUsers struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]user.User
	calls map[string]int

	// afterTokenLookup runs once a verification token lookup has returned
	afterTokenLookup func(u *user.User)
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]user.User{}, calls: map[string]int{}}
}

func (m *memUsers) put(u user.User) *user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.byID[u.ID] = u
	return &u
}

func (m *memUsers) get(id uuid.UUID) user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *memUsers) Create(_ context.Context, u *user.User) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Create"]++
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return nil, user.ErrDuplicateEmail
		}
	}
	c := *u
	m.byID[c.ID] = c
	return &c, nil
}

func (m *memUsers) find(match func(user.User) bool) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			c := u
			return &c, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	return m.find(func(u user.User) bool { return u.Email == email })
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	return m.find(func(u user.User) bool { return u.ID == id })
}

func (m *memUsers) GetByVerificationToken(_ context.Context, token string) (*user.User, error) {
	u, err := m.find(func(u user.User) bool {
		return !u.EmailVerified && u.VerificationToken != nil && *u.VerificationToken == token
	})
	if err == nil && m.afterTokenLookup != nil {
		m.afterTokenLookup(u)
	}
	return u, err
}

func (m *memUsers) update(id uuid.UUID, fn func(u *user.User) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !fn(&u) {
		return user.ErrNotFound
	}
	m.byID[id] = u
	return nil
}

func (m *memUsers) MarkEmailAsVerified(_ context.Context, id uuid.UUID, token string, now time.Time) error {
	return m.update(id, func(u *user.User) bool {
		if u.VerificationToken == nil || *u.VerificationToken != token ||
			u.VerificationExpiresAt == nil || !now.Before(*u.VerificationExpiresAt) {
			return false
		}
		u.EmailVerified = true
		u.VerificationToken = nil
		u.VerificationExpiresAt = nil
		return true
	})
}

func (m *memUsers) UpdateVerificationToken(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return m.update(id, func(u *user.User) bool {
		if u.EmailVerified {
			return false
		}
		u.VerificationToken = &token
		u.VerificationExpiresAt = &expiresAt
		return true
	})
}

func (m *memUsers) SetOTP(_ context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	return m.update(id, func(u *user.User) bool {
		u.OTPCode = &code
		u.OTPExpiresAt = &expiresAt
		return true
	})
}

func (m *memUsers) ConsumeOTP(_ context.Context, id uuid.UUID, code string, now time.Time) error {
	return m.update(id, func(u *user.User) bool {
		if u.OTPCode == nil || *u.OTPCode != code || !now.Before(*u.OTPExpiresAt) {
			return false
		}
		u.OTPCode = nil
		u.OTPExpiresAt = nil
		return true
	})
}

func (m *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	m.calls["UpdatePassword"]++
	m.mu.Unlock()
	return m.update(id, func(u *user.User) bool {
		u.PasswordHash = passwordHash
		u.OTPCode = nil
		u.OTPExpiresAt = nil
		return true
	})
}

// fakeMailer records the last secret mailed to each address
type fakeMailer struct {
	mu            sync.Mutex
	verifications map[string]string
	otps          map[string]string
	resets        map[string]string
	err           error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		verifications: map[string]string{},
		otps:          map[string]string{},
		resets:        map[string]string{},
	}
}

func (f *fakeMailer) record(m map[string]string, to, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	m[to] = secret
	return nil
}

func (f *fakeMailer) SendVerificationEmail(_ context.Context, to, _, token string) error {
	return f.record(f.verifications, to, token)
}

func (f *fakeMailer) SendOTPEmail(_ context.Context, to, _, code string, _ time.Duration) error {
	return f.record(f.otps, to, code)
}

func (f *fakeMailer) SendPasswordResetEmail(_ context.Context, to, _, token string) error {
	return f.record(f.resets, to, token)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc      *Service
	users    *memUsers
	mailer   *fakeMailer
	clock    *fakeClock
	tokens   TokenService
	sessions *SessionRepository
	redis    *miniredis.Miniredis
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tokens, err := NewPasetoService([]byte(testSecret))
	require.NoError(t, err)

	opts := Options{
		SessionDuration:      30 * 24 * time.Hour,
		OTPTTL:               10 * time.Minute,
		VerificationTTL:      time.Hour,
		RequireVerifiedLogin: true,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	env := &testEnv{
		users:    newMemUsers(),
		mailer:   newFakeMailer(),
		clock:    &fakeClock{t: time.Now()},
		tokens:   tokens,
		sessions: NewSessionRepository(client),
		redis:    mr,
	}

	env.svc = NewService(
		env.users,
		NewPasswordHasher(testArgon2Params),
		tokens,
		env.mailer,
		NewPasswordResetRepository(client, time.Hour),
		env.sessions,
		nil,
		logging.NewLoggerWithWriter(io.Discard, false),
		opts,
	)
	env.svc.now = env.clock.Now

	return env
}

// seedUser stores an account with the given password
func (e *testEnv) seedUser(t *testing.T, email, password string, role user.Role, verified bool) *user.User {
	t.Helper()

	hash, err := e.svc.hasher.Hash(password)
	require.NoError(t, err)

	return e.users.put(user.User{
		Name:          "Test User",
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		EmailVerified: verified,
	})
}
