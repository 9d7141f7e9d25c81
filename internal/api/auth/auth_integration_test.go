//go:build integration

package auth

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	database "github.com/FACorreiaa/go-auth-service/app/db"
	"github.com/FACorreiaa/go-auth-service/internal/mailer"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	if err := godotenv.Load("../../../.env.test"); err != nil {
		log.Println("Warning: .env.test file not found for auth integration tests.")
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		log.Println("TEST_DATABASE_URL is not set, skipping auth integration tests")
		os.Exit(0)
	}

	logger := discardLogger()
	if err := database.RunMigrations(dbURL, logger); err != nil {
		log.Fatalf("Unable to migrate test database: %v", err)
	}

	var err error
	testDB, err = database.Init(context.Background(), dbURL, logger)
	if err != nil {
		log.Fatalf("Unable to create connection pool: %v", err)
	}
	if !database.WaitForDB(context.Background(), testDB, logger) {
		log.Fatal("Test database is not reachable")
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func clearUsers(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), "DELETE FROM users")
	require.NoError(t, err, "Failed to clear users table")
}

func newPostgresService(t *testing.T) (*AuthServiceImpl, *PostgresAuthRepo, *mailer.Recorder) {
	t.Helper()
	clearUsers(t)
	logger := discardLogger()
	repo := NewPostgresAuthRepo(testDB, logger)
	store := WithTimeout(repo, 5*time.Second)
	hasher := NewBcryptHasher(minBcryptCost)
	tokens, err := NewTokenService(testJWTConfig())
	require.NoError(t, err)

	rec := &mailer.Recorder{}
	svc := NewAuthService(ServiceDeps{
		Store:    store,
		Hasher:   hasher,
		Tokens:   tokens,
		Codes:    NewCodeIssuer(store, time.Hour),
		Resets:   NewResetIssuer(store, hasher, time.Hour),
		Throttle: NewRegistrationThrottle(NewCacheCounterStore(time.Minute), time.Minute, 100, logger),
		Mailer:   rec,
		ResetURL: testResetURL,
	}, logger)
	return svc, repo, rec
}

func TestPostgresRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	svc, repo, rec := newPostgresService(t)

	resp, err := svc.Register(ctx, "client", types.RegisterRequest{Username: "alice", Email: "alice@x.com", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, resp.User.EmailVerified)

	_, err = svc.Register(ctx, "client", types.RegisterRequest{Username: "alice2", Email: "alice@x.com", Password: testPassword})
	assert.ErrorIs(t, err, types.ErrDuplicateIdentity)
	_, err = repo.FindByUsername(ctx, "alice2")
	assert.ErrorIs(t, err, types.ErrNotFound)

	msg, ok := rec.Last("alice@x.com")
	require.True(t, ok)
	code := codePattern.FindStringSubmatch(msg.Body)[1]

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.VerifyCode(ctx, types.VerifyCodeRequest{Email: "alice@x.com", Code: code}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	login, err := svc.Login(ctx, types.LoginRequest{Email: "alice@x.com", Password: testPassword})
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLoginAt)

	stored, err := repo.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationCode)
}

func TestPostgresPasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, repo, rec := newPostgresService(t)

	_, err := svc.Register(ctx, "client", types.RegisterRequest{Username: "bob", Email: "bob@x.com", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, types.EmailRequest{Email: "bob@x.com"}))

	msg, ok := rec.Last("bob@x.com")
	require.True(t, ok)
	token := tokenPattern.FindStringSubmatch(msg.Body)[1]

	stored, err := repo.FindByEmail(ctx, "bob@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)
	assert.Equal(t, FingerprintToken(token), *stored.ResetToken)

	require.NoError(t, svc.ResetPassword(ctx, types.ResetPasswordRequest{Token: token, NewPassword: "NewPassw0rd"}))
	err = svc.ResetPassword(ctx, types.ResetPasswordRequest{Token: token, NewPassword: "Another1pw"})
	assert.ErrorIs(t, err, types.ErrInvalidOrExpiredToken)
}

func TestPostgresLivePing(t *testing.T) {
	_, repo, _ := newPostgresService(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
