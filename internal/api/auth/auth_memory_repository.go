package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

var _ CredentialStore = (*MemoryAuthRepo)(nil)

// MemoryAuthRepo keeps users in process memory. It enforces the same uniqueness
// and conditional-write rules as the Postgres store and is used for local runs and tests.
type MemoryAuthRepo struct {
	mu         sync.RWMutex
	byID       map[string]*types.UserAuth
	byEmail    map[string]string
	byUsername map[string]string
	// reset token fingerprint -> user id, mirroring the partial unique index
	byResetToken map[string]string
	now          func() time.Time
}

func NewMemoryAuthRepo() *MemoryAuthRepo {
	return &MemoryAuthRepo{
		byID:         make(map[string]*types.UserAuth),
		byEmail:      make(map[string]string),
		byUsername:   make(map[string]string),
		byResetToken: make(map[string]string),
		now:          time.Now,
	}
}

func cloneUser(u *types.UserAuth) *types.UserAuth {
	c := *u
	c.VerificationCode = clonePtr(u.VerificationCode)
	c.VerificationCodeExpiresAt = clonePtr(u.VerificationCodeExpiresAt)
	c.ResetToken = clonePtr(u.ResetToken)
	c.ResetTokenExpiresAt = clonePtr(u.ResetTokenExpiresAt)
	c.LastLoginAt = clonePtr(u.LastLoginAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (m *MemoryAuthRepo) lookup(index map[string]string, key string) (*types.UserAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := index[key]
	if !ok {
		return nil, types.ErrNotFound
	}
	return cloneUser(m.byID[id]), nil
}

func (m *MemoryAuthRepo) FindByEmail(_ context.Context, email string) (*types.UserAuth, error) {
	return m.lookup(m.byEmail, email)
}

func (m *MemoryAuthRepo) FindByUsername(_ context.Context, username string) (*types.UserAuth, error) {
	return m.lookup(m.byUsername, username)
}

func (m *MemoryAuthRepo) FindByID(_ context.Context, id string) (*types.UserAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryAuthRepo) FindByResetToken(_ context.Context, tokenHash string) (*types.UserAuth, error) {
	return m.lookup(m.byResetToken, tokenHash)
}

func (m *MemoryAuthRepo) Insert(_ context.Context, nu types.NewUser) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[nu.Email]; taken {
		return "", types.ErrDuplicateIdentity
	}
	if _, taken := m.byUsername[nu.Username]; taken {
		return "", types.ErrDuplicateIdentity
	}
	role := nu.Role
	if role == "" {
		role = types.RoleUser
	}
	now := m.now()
	u := &types.UserAuth{
		ID:           uuid.NewString(),
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	m.byUsername[u.Username] = u.ID
	return u.ID, nil
}

func applySecret(value **string, expires **time.Time, s *types.SecretUpdate) {
	if s.Value == "" {
		*value, *expires = nil, nil
		return
	}
	v, e := s.Value, s.ExpiresAt
	*value, *expires = &v, &e
}

func (m *MemoryAuthRepo) Update(_ context.Context, id string, upd types.UserUpdate) (*types.UserAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	if upd.Empty() {
		return cloneUser(u), nil
	}
	if upd.Username != nil && *upd.Username != u.Username {
		if _, taken := m.byUsername[*upd.Username]; taken {
			return nil, types.ErrDuplicateIdentity
		}
	}
	if upd.Email != nil && *upd.Email != u.Email {
		if _, taken := m.byEmail[*upd.Email]; taken {
			return nil, types.ErrDuplicateIdentity
		}
	}
	if upd.ResetToken != nil && upd.ResetToken.Value != "" {
		if owner, taken := m.byResetToken[upd.ResetToken.Value]; taken && owner != id {
			return nil, types.ErrDuplicateIdentity
		}
	}

	if upd.Username != nil && *upd.Username != u.Username {
		delete(m.byUsername, u.Username)
		u.Username = *upd.Username
		m.byUsername[u.Username] = u.ID
	}
	if upd.Email != nil && *upd.Email != u.Email {
		delete(m.byEmail, u.Email)
		u.Email = *upd.Email
		m.byEmail[u.Email] = u.ID
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.EmailVerified != nil {
		u.EmailVerified = *upd.EmailVerified
	}
	if upd.VerificationCode != nil {
		applySecret(&u.VerificationCode, &u.VerificationCodeExpiresAt, upd.VerificationCode)
	}
	if upd.ResetToken != nil {
		m.dropResetToken(u)
		applySecret(&u.ResetToken, &u.ResetTokenExpiresAt, upd.ResetToken)
		if u.ResetToken != nil {
			m.byResetToken[*u.ResetToken] = u.ID
		}
	}
	if upd.LastLoginAt != nil {
		at := *upd.LastLoginAt
		u.LastLoginAt = &at
	}
	u.UpdatedAt = m.now()
	return cloneUser(u), nil
}

func (m *MemoryAuthRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	delete(m.byEmail, u.Email)
	delete(m.byUsername, u.Username)
	m.dropResetToken(u)
	delete(m.byID, id)
	return true, nil
}

func (m *MemoryAuthRepo) ConsumeVerificationCode(_ context.Context, id, code string, now time.Time) (*types.UserAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok || u.VerificationCode == nil || *u.VerificationCode != code ||
		u.VerificationCodeExpiresAt == nil || !u.VerificationCodeExpiresAt.After(now) {
		return nil, types.ErrNotFound
	}
	u.EmailVerified = true
	u.VerificationCode, u.VerificationCodeExpiresAt = nil, nil
	u.UpdatedAt = now
	return cloneUser(u), nil
}

func (m *MemoryAuthRepo) ConsumeResetToken(_ context.Context, tokenHash, newPasswordHash string, now time.Time) (*types.UserAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byResetToken[tokenHash]
	if !ok {
		return nil, types.ErrNotFound
	}
	u := m.byID[id]
	if u.ResetTokenExpiresAt == nil || !u.ResetTokenExpiresAt.After(now) {
		return nil, types.ErrNotFound
	}
	m.dropResetToken(u)
	u.PasswordHash = newPasswordHash
	u.ResetToken, u.ResetTokenExpiresAt = nil, nil
	u.UpdatedAt = now
	return cloneUser(u), nil
}

// dropResetToken removes u's fingerprint from the index. Callers hold mu.
func (m *MemoryAuthRepo) dropResetToken(u *types.UserAuth) {
	if u.ResetToken != nil {
		delete(m.byResetToken, *u.ResetToken)
	}
}

func (m *MemoryAuthRepo) RecordLogin(_ context.Context, id, passwordHash string, at time.Time) (*types.UserAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok || u.PasswordHash != passwordHash {
		return nil, types.ErrNotFound
	}
	u.LastLoginAt = &at
	return cloneUser(u), nil
}

func (m *MemoryAuthRepo) Ping(context.Context) error { return nil }
