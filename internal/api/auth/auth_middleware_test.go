package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

func TestClientKey(t *testing.T) {
	cases := map[string]string{
		"192.0.2.1:5000":          "192.0.2.1",
		"192.0.2.1":               "192.0.2.1",
		"[2001:db8::1]:443":       "2001:db8::",
		"2001:db8::1:2:3:4":       "2001:db8::",
		"[fe80::1%eth0]:443":      "fe80::",
		"[::ffff:192.0.2.9]:8080": "192.0.2.9",
		"::ffff:192.0.2.9":        "192.0.2.9",
		"":                        "unknown",
		"not-an-ip":               "not-an-ip",
	}
	for remote, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		assert.Equal(t, want, ClientKey(r), remote)
		assert.Equal(t, remote, r.RemoteAddr, "the caller's request is left untouched")
	}

	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.RemoteAddr = "[2001:db8:0:0:aaaa::1]:443"
	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.RemoteAddr = "[2001:db8:0:0:bbbb::2]:443"
	assert.Equal(t, ClientKey(a), ClientKey(b), "one /64 is one client")
	b.RemoteAddr = "[2001:db8:0:1::2]:443"
	assert.NotEqual(t, ClientKey(a), ClientKey(b))
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := extractToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer abc")
	token, ok := extractToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	r.Header.Set("Authorization", "Bearer ")
	_, ok = extractToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "from-cookie"})
	_, ok = extractToken(r)
	assert.False(t, ok, "a malformed header is not silently replaced by the cookie")

	r.Header.Del("Authorization")
	token, ok = extractToken(r)
	assert.True(t, ok)
	assert.Equal(t, "from-cookie", token)
}

type stubVerifier struct {
	claims *types.Claims
	err    error
}

func (s stubVerifier) VerifyAccessToken(string) (*types.Claims, error) { return s.claims, s.err }

func TestAuthenticateReloadsIdentity(t *testing.T) {
	store := new(MockCredentialStore)
	store.On("FindByID", mock.Anything, "u-1").Return(&types.UserAuth{
		ID: "u-1", Username: "alice", Role: types.RoleAdmin, EmailVerified: true,
	}, nil).Once()

	// the token still says "user"; the store wins
	verifier := stubVerifier{claims: &types.Claims{UserID: "u-1", Role: types.RoleUser}}

	var got types.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = IdentityFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer t")
	w := httptest.NewRecorder()
	Authenticate(discardLogger(), verifier, store)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, types.RoleAdmin, got.Role)
	assert.True(t, got.EmailVerified)
	store.AssertExpectations(t)
}

func TestAuthenticateFailures(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	t.Run("InvalidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer t")
		w := httptest.NewRecorder()
		Authenticate(discardLogger(), stubVerifier{err: types.ErrInvalidToken}, new(MockCredentialStore))(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("StoreDown", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("FindByID", mock.Anything, "u-1").Return(nil, errors.New("timeout")).Once()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer t")
		w := httptest.NewRecorder()
		Authenticate(discardLogger(), stubVerifier{claims: &types.Claims{UserID: "u-1"}}, store)(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	gate := RequireAdmin(discardLogger())(ok)

	serve := func(ctx context.Context) int {
		w := httptest.NewRecorder()
		gate.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
	assert.Equal(t, http.StatusForbidden, serve(WithIdentity(context.Background(), types.Identity{UserID: "u", Role: types.RoleUser})))
	assert.Equal(t, http.StatusNoContent, serve(WithIdentity(context.Background(), types.Identity{UserID: "u", Role: types.RoleAdmin})))
}
