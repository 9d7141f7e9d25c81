package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	minBcryptCost     = 10
	DefaultBcryptCost = 12
)

// PasswordHasher turns plaintext passwords into one-way adaptive hashes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

var _ PasswordHasher = (*BcryptHasher)(nil)

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher clamps cost to [10, bcrypt.MaxCost].
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < minBcryptCost {
		cost = minBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify relies on bcrypt's constant-time comparison.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
