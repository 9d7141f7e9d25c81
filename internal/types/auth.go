package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateIdentity     = errors.New("username or email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrUnverifiedAccount     = errors.New("email address has not been verified")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrCodeExpired           = errors.New("verification code has expired")
	ErrAlreadyVerified       = errors.New("email address is already verified")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidToken          = errors.New("invalid token")
	ErrRateLimitExceeded     = errors.New("too many attempts")
	ErrUnauthenticated       = errors.New("authentication required")
	ErrForbidden             = errors.New("action forbidden")
	ErrNotFound              = errors.New("requested item not found")
	ErrUserNotFound          = errors.New("user not found")
)

// ValidationError describes a single malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RateLimitError is returned when the registration throttle trips.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %d seconds", e.RetryAfterSeconds())
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

// RetryAfterSeconds rounds the remaining window up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// UserAuth is one stored identity. PasswordHash and the single-use secrets never leave the server.
type UserAuth struct {
	ID                        string     `json:"id"`
	Username                  string     `json:"username"`
	Email                     string     `json:"email"`
	PasswordHash              string     `json:"-"`
	Role                      Role       `json:"role"`
	EmailVerified             bool       `json:"email_verified"`
	VerificationCode          *string    `json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`
	ResetToken                *string    `json:"-"`
	ResetTokenExpiresAt       *time.Time `json:"-"`
	LastLoginAt               *time.Time `json:"last_login_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// Public returns the sanitized projection sent to clients.
func (u *UserAuth) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// PublicUser is the client-facing view of a user.
type PublicUser struct {
	ID            string     `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Username      string     `json:"username" example:"alice"`
	Email         string     `json:"email" example:"alice@example.com"`
	Role          Role       `json:"role" example:"user"`
	EmailVerified bool       `json:"email_verified" example:"false"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewUser holds the fields written by a registration insert.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         Role
}

// SecretUpdate sets a single-use secret together with its expiry. An empty Value clears both.
type SecretUpdate struct {
	Value     string
	ExpiresAt time.Time
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Username         *string
	Email            *string
	PasswordHash     *string
	Role             *Role
	EmailVerified    *bool
	VerificationCode *SecretUpdate
	ResetToken       *SecretUpdate
	LastLoginAt      *time.Time
}

// Empty reports whether the update would change nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.PasswordHash == nil && u.Role == nil &&
		u.EmailVerified == nil && u.VerificationCode == nil && u.ResetToken == nil && u.LastLoginAt == nil
}

// Identity is what the auth gate attaches to the request context. It is always re-read from the store.
type Identity struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

// Claims is the access-token payload.
type Claims struct {
	UserID   string `json:"uid"`
	Email    string `json:"eml"`
	Role     Role   `json:"rol"`
	Username string `json:"usr"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh-token payload; it carries the user id only.
type RefreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token" example:"eyJhbGciOiJI..."`
	RefreshToken string `json:"refresh_token" example:"eyJhbGciOiJI..."`
	TokenType    string `json:"token_type" example:"Bearer"`
	ExpiresIn    int64  `json:"expires_in" example:"3600"`
}
