package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

const (
	DefaultCodeTTL = 24 * time.Hour
	codeDigits     = 6
)

var codeSpace = big.NewInt(1_000_000)

// CodeIssuer manages the single-use email verification code of each user.
type CodeIssuer struct {
	store  CredentialStore
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

func NewCodeIssuer(store CredentialStore, ttl time.Duration) *CodeIssuer {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeIssuer{store: store, ttl: ttl, now: time.Now, random: rand.Reader}
}

// generateCode draws a uniform value in [0, 999999] and zero-pads it.
func generateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// Issue stores a fresh code for userID, replacing any unconsumed one, and returns it.
func (c *CodeIssuer) Issue(ctx context.Context, userID string) (string, error) {
	code, err := generateCode(c.random)
	if err != nil {
		return "", err
	}
	_, err = c.store.Update(ctx, userID, types.UserUpdate{
		VerificationCode: &types.SecretUpdate{Value: code, ExpiresAt: c.now().Add(c.ttl)},
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", types.ErrUserNotFound
		}
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return code, nil
}

// Consume verifies the account owning email if code matches and is still live.
// A code can succeed at most once, even under concurrent submissions.
func (c *CodeIssuer) Consume(ctx context.Context, email, code string) (*types.UserAuth, error) {
	user, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user for verification: %w", err)
	}

	if user.VerificationCode == nil ||
		subtle.ConstantTimeCompare([]byte(*user.VerificationCode), []byte(code)) != 1 {
		return nil, types.ErrInvalidCode
	}
	now := c.now()
	if user.VerificationCodeExpiresAt == nil || !now.Before(*user.VerificationCodeExpiresAt) {
		return nil, types.ErrCodeExpired
	}

	verified, err := c.store.ConsumeVerificationCode(ctx, user.ID, code, now)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			// lost the race to a concurrent consume or resend
			return nil, types.ErrInvalidCode
		}
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	return verified, nil
}

// Resend replaces the code of an unverified user.
func (c *CodeIssuer) Resend(ctx context.Context, userID string) (string, error) {
	user, err := c.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", types.ErrUserNotFound
		}
		return "", fmt.Errorf("load user for resend: %w", err)
	}
	if user.EmailVerified {
		return "", types.ErrAlreadyVerified
	}
	return c.Issue(ctx, user.ID)
}
