package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-auth-service/config"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

// AccessTokenVerifier is what the auth gate needs from the token service.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*types.Claims, error)
}

var _ AccessTokenVerifier = (*TokenService)(nil)

// TokenService signs and verifies access and refresh tokens with independent secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	now           func() time.Time
}

func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	if cfg.SecretKey == "" || cfg.RefreshSecretKey == "" {
		return nil, errors.New("token service: access and refresh secrets are required")
	}
	if cfg.SecretKey == cfg.RefreshSecretKey {
		return nil, errors.New("token service: access and refresh secrets must differ")
	}
	accessTTL, refreshTTL := cfg.AccessTokenTTL, cfg.RefreshTokenTTL
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		accessSecret:  []byte(cfg.SecretKey),
		refreshSecret: []byte(cfg.RefreshSecretKey),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           time.Now,
	}, nil
}

// AccessTTL is the lifetime of issued access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	if s.audience != "" {
		rc.Audience = jwt.ClaimStrings{s.audience}
	}
	return rc
}

func (s *TokenService) IssueAccessToken(user *types.UserAuth) (string, error) {
	claims := &types.Claims{
		UserID:           user.ID,
		Email:            user.Email,
		Role:             user.Role,
		Username:         user.Username,
		RegisteredClaims: s.registered(user.ID, s.accessTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) IssueRefreshToken(user *types.UserAuth) (string, error) {
	claims := &types.RefreshClaims{
		UserID:           user.ID,
		RegisteredClaims: s.registered(user.ID, s.refreshTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// IssuePair issues both tokens for user.
func (s *TokenService) IssuePair(user *types.UserAuth) (*types.TokenPair, error) {
	access, err := s.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &types.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// Verify checks signature, algorithm, expiry, issuer and audience and fills claims.
// Every failure is reported as types.ErrInvalidToken.
func (s *TokenService) Verify(tokenString string, secret []byte, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return types.ErrInvalidToken
	}
	return nil
}

func (s *TokenService) VerifyAccessToken(token string) (*types.Claims, error) {
	claims := &types.Claims{}
	if err := s.Verify(token, s.accessSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, types.ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) VerifyRefreshToken(token string) (*types.RefreshClaims, error) {
	claims := &types.RefreshClaims{}
	if err := s.Verify(token, s.refreshSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, types.ErrInvalidToken
	}
	return claims, nil
}
