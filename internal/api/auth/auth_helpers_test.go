package auth

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-auth-service/config"
	"github.com/FACorreiaa/go-auth-service/internal/mailer"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

const (
	testPassword = "Password1"
	testResetURL = "http://localhost:3000/reset-password"
)

var (
	codePattern  = regexp.MustCompile(`\b(\d{6})\b`)
	tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey:        "test-access-secret",
		RefreshSecretKey: "test-refresh-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		Issuer:           "go-auth-service-test",
		Audience:         "go-auth-service-clients",
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().Truncate(time.Second)}
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
	clock   *fakeClock
	store   *MemoryAuthRepo
	hasher  *BcryptHasher
	tokens  *TokenService
	codes   *CodeIssuer
	resets  *ResetIssuer
	mail    *mailer.Recorder
	service *AuthServiceImpl
}

func newTestEnv(t *testing.T, quota int) *testEnv {
	t.Helper()
	clock := newFakeClock()
	logger := discardLogger()

	store := NewMemoryAuthRepo()
	store.now = clock.Now
	hasher := NewBcryptHasher(minBcryptCost)

	tokens, err := NewTokenService(testJWTConfig())
	require.NoError(t, err)
	tokens.now = clock.Now

	codes := NewCodeIssuer(store, time.Hour)
	codes.now = clock.Now
	resets := NewResetIssuer(store, hasher, 30*time.Minute)
	resets.now = clock.Now

	rec := &mailer.Recorder{}
	svc := NewAuthService(ServiceDeps{
		Store:       store,
		Hasher:      hasher,
		Tokens:      tokens,
		Codes:       codes,
		Resets:      resets,
		Throttle:    NewRegistrationThrottle(NewCacheCounterStore(time.Minute), 15*time.Minute, quota, logger),
		Mailer:      rec,
		MailTimeout: time.Second,
		ResetURL:    testResetURL,
	}, logger)
	svc.now = clock.Now

	return &testEnv{
		clock:   clock,
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		codes:   codes,
		resets:  resets,
		mail:    rec,
		service: svc,
	}
}

func (e *testEnv) register(t *testing.T, username, email string) *types.PublicUser {
	t.Helper()
	resp, err := e.service.Register(context.Background(), "203.0.113.7", types.RegisterRequest{
		Username: username,
		Email:    email,
		Password: testPassword,
	})
	require.NoError(t, err)
	return resp.User
}

func (e *testEnv) lastCode(t *testing.T, email string) string {
	t.Helper()
	msg, ok := e.mail.Last(email)
	require.True(t, ok, "no email sent to %s", email)
	m := codePattern.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no code in email body")
	return m[1]
}

func (e *testEnv) lastResetToken(t *testing.T, email string) string {
	t.Helper()
	msg, ok := e.mail.Last(email)
	require.True(t, ok, "no email sent to %s", email)
	m := tokenPattern.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no reset token in email body")
	return m[1]
}

// registerVerified registers a user and confirms its email.
func (e *testEnv) registerVerified(t *testing.T, username, email string) *types.PublicUser {
	t.Helper()
	e.register(t, username, email)
	user, err := e.service.VerifyCode(context.Background(), types.VerifyCodeRequest{
		Email: email,
		Code:  e.lastCode(t, email),
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) promote(t *testing.T, userID string) {
	t.Helper()
	role := types.RoleAdmin
	_, err := e.store.Update(context.Background(), userID, types.UserUpdate{Role: &role})
	require.NoError(t, err)
}

// countingHasher records how often each bcrypt operation runs.
type countingHasher struct {
	*BcryptHasher
	hashes   atomic.Int32
	verifies atomic.Int32
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	h.hashes.Add(1)
	return h.BcryptHasher.Hash(plaintext)
}

func (h *countingHasher) Verify(plaintext, hash string) bool {
	h.verifies.Add(1)
	return h.BcryptHasher.Verify(plaintext, hash)
}

// MockCredentialStore is a testify mock of CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

var _ CredentialStore = (*MockCredentialStore)(nil)

func userOrNil(args mock.Arguments) (*types.UserAuth, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockCredentialStore) FindByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, email))
}

func (m *MockCredentialStore) FindByUsername(ctx context.Context, username string) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, username))
}

func (m *MockCredentialStore) FindByID(ctx context.Context, id string) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, id))
}

func (m *MockCredentialStore) FindByResetToken(ctx context.Context, tokenHash string) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, tokenHash))
}

func (m *MockCredentialStore) Insert(ctx context.Context, user types.NewUser) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialStore) Update(ctx context.Context, id string, upd types.UserUpdate) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, id, upd))
}

func (m *MockCredentialStore) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCredentialStore) ConsumeVerificationCode(ctx context.Context, id, code string, now time.Time) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, id, code, now))
}

func (m *MockCredentialStore) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, tokenHash, newPasswordHash, now))
}

func (m *MockCredentialStore) RecordLogin(ctx context.Context, id, passwordHash string, at time.Time) (*types.UserAuth, error) {
	return userOrNil(m.Called(ctx, id, passwordHash, at))
}

func (m *MockCredentialStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// newMockedService wires a service around a mocked store; everything else is real.
func newMockedService(t *testing.T, store CredentialStore) *AuthServiceImpl {
	t.Helper()
	logger := discardLogger()
	hasher := NewBcryptHasher(minBcryptCost)
	tokens, err := NewTokenService(testJWTConfig())
	require.NoError(t, err)
	return NewAuthService(ServiceDeps{
		Store:    store,
		Hasher:   hasher,
		Tokens:   tokens,
		Codes:    NewCodeIssuer(store, time.Hour),
		Resets:   NewResetIssuer(store, hasher, time.Hour),
		Throttle: NewRegistrationThrottle(NewCacheCounterStore(time.Minute), time.Minute, 100, logger),
		Mailer:   &mailer.Recorder{},
	}, logger)
}
