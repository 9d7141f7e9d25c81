package auth

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

func TestGenerateCode(t *testing.T) {
	code, err := generateCode(bytes.NewReader(make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, "000000", code)

	_, err = generateCode(iotest.ErrReader(errors.New("entropy exhausted")))
	assert.Error(t, err)

	for i := 0; i < 200; i++ {
		code, err := generateCode(NewCodeIssuer(nil, 0).random)
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}

func TestCodeIssuerIssueUnknownUser(t *testing.T) {
	store := new(MockCredentialStore)
	store.On("Update", mock.Anything, "missing", mock.MatchedBy(func(u types.UserUpdate) bool {
		return u.VerificationCode != nil && len(u.VerificationCode.Value) == codeDigits
	})).Return(nil, types.ErrNotFound).Once()

	_, err := NewCodeIssuer(store, time.Hour).Issue(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrUserNotFound)
	store.AssertExpectations(t)
}

func TestCodeIssuerLosesRace(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	code := "123456"
	expires := now.Add(time.Hour)
	user := &types.UserAuth{ID: "u-1", Email: "alice@example.com", VerificationCode: &code, VerificationCodeExpiresAt: &expires}

	store := new(MockCredentialStore)
	store.On("FindByEmail", mock.Anything, "alice@example.com").Return(user, nil).Once()
	store.On("ConsumeVerificationCode", mock.Anything, "u-1", code, now).Return(nil, types.ErrNotFound).Once()

	issuer := NewCodeIssuer(store, time.Hour)
	issuer.now = func() time.Time { return now }
	_, err := issuer.Consume(ctx, "alice@example.com", code)
	assert.ErrorIs(t, err, types.ErrInvalidCode)
	store.AssertExpectations(t)
}

func TestCodeIssuerDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultCodeTTL, NewCodeIssuer(nil, 0).ttl)
	assert.Equal(t, DefaultResetTTL, NewResetIssuer(nil, nil, -time.Second).ttl)
}

func TestFingerprintToken(t *testing.T) {
	fp := FingerprintToken("abc")
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, FingerprintToken("abc"))
	assert.NotEqual(t, fp, FingerprintToken("abd"))
}

func TestGenerateResetToken(t *testing.T) {
	a, err := generateResetToken(NewResetIssuer(nil, nil, 0).random)
	require.NoError(t, err)
	b, err := generateResetToken(NewResetIssuer(nil, nil, 0).random)
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)

	_, err = generateResetToken(iotest.ErrReader(errors.New("entropy exhausted")))
	assert.Error(t, err)
}

func TestResetIssuer(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryAuthRepo()
	hasher := NewBcryptHasher(minBcryptCost)
	id, err := store.Insert(ctx, types.NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "old"})
	require.NoError(t, err)

	issuer := NewResetIssuer(store, hasher, time.Hour)
	issuer.now = clock.Now

	t.Run("UnknownEmail", func(t *testing.T) {
		token, user, err := issuer.Issue(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, user)
	})

	t.Run("IssueStoresFingerprint", func(t *testing.T) {
		token, user, err := issuer.Issue(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		require.NotNil(t, user.ResetToken)
		assert.Equal(t, FingerprintToken(token), *user.ResetToken)
		assert.Equal(t, clock.Now().Add(time.Hour), *user.ResetTokenExpiresAt)
	})

	t.Run("ConsumeOnce", func(t *testing.T) {
		token, _, err := issuer.Issue(ctx, "alice@example.com")
		require.NoError(t, err)

		user, err := issuer.Consume(ctx, token, "NewPassw0rd")
		require.NoError(t, err)
		assert.True(t, hasher.Verify("NewPassw0rd", user.PasswordHash))
		assert.Nil(t, user.ResetToken)

		_, err = issuer.Consume(ctx, token, "NewPassw0rd")
		assert.ErrorIs(t, err, types.ErrInvalidOrExpiredToken)
	})

	t.Run("ExpiresAtBoundary", func(t *testing.T) {
		token, _, err := issuer.Issue(ctx, "alice@example.com")
		require.NoError(t, err)
		clock.Advance(time.Hour)
		_, err = issuer.Consume(ctx, token, "NewPassw0rd")
		assert.ErrorIs(t, err, types.ErrInvalidOrExpiredToken)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		_, err := issuer.Consume(ctx, "", "NewPassw0rd")
		assert.ErrorIs(t, err, types.ErrInvalidOrExpiredToken)
	})
}
