package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

const (
	DefaultResetTTL = time.Hour
	resetTokenBytes = 32
)

// ResetIssuer manages single-use password reset tokens. Only the SHA-256 fingerprint is stored.
type ResetIssuer struct {
	store  CredentialStore
	hasher PasswordHasher
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

func NewResetIssuer(store CredentialStore, hasher PasswordHasher, ttl time.Duration) *ResetIssuer {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetIssuer{store: store, hasher: hasher, ttl: ttl, now: time.Now, random: rand.Reader}
}

func generateResetToken(r io.Reader) (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken is the stored form of a reset token.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue returns an empty token and nil user when no account owns email.
func (ri *ResetIssuer) Issue(ctx context.Context, email string) (string, *types.UserAuth, error) {
	user, err := ri.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("load user for reset: %w", err)
	}

	token, err := generateResetToken(ri.random)
	if err != nil {
		return "", nil, err
	}
	updated, err := ri.store.Update(ctx, user.ID, types.UserUpdate{
		ResetToken: &types.SecretUpdate{Value: FingerprintToken(token), ExpiresAt: ri.now().Add(ri.ttl)},
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("store reset token: %w", err)
	}
	return token, updated, nil
}

// Consume sets newPassword for the owner of token. Unknown, expired and already used
// tokens all fail with types.ErrInvalidOrExpiredToken.
func (ri *ResetIssuer) Consume(ctx context.Context, token, newPassword string) (*types.UserAuth, error) {
	if token == "" {
		return nil, types.ErrInvalidOrExpiredToken
	}
	fingerprint := FingerprintToken(token)

	user, err := ri.store.FindByResetToken(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("load user for reset: %w", err)
	}
	if user.ResetTokenExpiresAt == nil || !ri.now().Before(*user.ResetTokenExpiresAt) {
		return nil, types.ErrInvalidOrExpiredToken
	}

	hash, err := ri.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	updated, err := ri.store.ConsumeResetToken(ctx, fingerprint, hash, ri.now())
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	return updated, nil
}
