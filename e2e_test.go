package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/FACorreiaa/go-auth-service/config"
	"github.com/FACorreiaa/go-auth-service/internal/container"
	"github.com/FACorreiaa/go-auth-service/internal/mailer"
	"github.com/FACorreiaa/go-auth-service/internal/router"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type apiResponse struct {
	Success              bool            `json:"success"`
	Message              string          `json:"message"`
	Code                 string          `json:"code"`
	RequiresVerification bool            `json:"requires_verification"`
	Data                 json.RawMessage `json:"data"`
}

// E2ETestSuite drives complete user workflows against a real HTTP server
// backed by the in-memory store.
type E2ETestSuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	container *container.Container
	mail      *mailer.Recorder
}

func testConfig() *config.Config {
	return &config.Config{
		Mode: "test",
		JWT: config.JWTConfig{
			SecretKey:        "e2e-access-secret",
			RefreshSecretKey: "e2e-refresh-secret",
			AccessTokenTTL:   15 * time.Minute,
			RefreshTokenTTL:  24 * time.Hour,
			Issuer:           "go-auth-service",
			Audience:         "go-auth-service-clients",
		},
		Throttle:     config.ThrottleConfig{Backend: "memory", Window: 15 * time.Minute, Quota: 10},
		Verification: config.VerificationConfig{CodeTTL: 24 * time.Hour},
		Reset:        config.ResetConfig{TokenTTL: time.Hour, ResetURL: "http://localhost:3000/reset-password"},
		Mail:         config.MailConfig{Driver: "log", Timeout: time.Second},
		Store:        config.StoreConfig{Backend: "memory", Timeout: 2 * time.Second},
	}
}

func (s *E2ETestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	s.Require().NoError(cfg.Validate())

	s.mail = &mailer.Recorder{}
	c, err := container.NewContainer(context.Background(), cfg, logger, container.WithMailer(s.mail))
	s.Require().NoError(err)
	s.container = c

	s.server = httptest.NewServer(router.SetupRouter(&router.Config{
		AuthHandler: c.AuthHandler,
		Tokens:      c.Tokens,
		Store:       c.Store,
		Logger:      logger,
	}))
	s.client = s.server.Client()
}

func (s *E2ETestSuite) TearDownTest() {
	s.server.Close()
	s.container.Close()
}

func (s *E2ETestSuite) post(path string, body any, token string) (*http.Response, apiResponse) {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(req)
}

func (s *E2ETestSuite) get(path, token string) (*http.Response, apiResponse) {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(req)
}

func (s *E2ETestSuite) send(req *http.Request) (*http.Response, apiResponse) {
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out apiResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (s *E2ETestSuite) lastCode(email string) string {
	msg, ok := s.mail.Last(email)
	s.Require().True(ok, "no mail sent to %s", email)
	m := codePattern.FindStringSubmatch(msg.Body)
	s.Require().Len(m, 2)
	return m[1]
}

func (s *E2ETestSuite) lastResetToken(email string) string {
	msg, ok := s.mail.Last(email)
	s.Require().True(ok)
	s.Require().Equal("password_reset", msg.Kind)
	for _, field := range regexp.MustCompile(`\s+`).Split(msg.Body, -1) {
		if u, err := url.Parse(field); err == nil && u.Query().Get("token") != "" {
			return u.Query().Get("token")
		}
	}
	s.FailNow("reset link not found in mail body")
	return ""
}

func (s *E2ETestSuite) login(email, password string) types.LoginResponse {
	resp, body := s.post("/auth/login", map[string]string{"email": email, "password": password}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, body.Message)
	var out types.LoginResponse
	s.Require().NoError(json.Unmarshal(body.Data, &out))
	return out
}

func (s *E2ETestSuite) TestRegistrationVerificationLogin() {
	alice := map[string]string{"username": "alice", "email": "alice@x.com", "password": "Password1"}

	// register: unverified, code stored with a 24h expiry
	before := time.Now()
	resp, body := s.post("/auth/register", alice, "")
	s.Require().Equal(http.StatusCreated, resp.StatusCode, body.Message)
	var reg types.RegisterResponse
	s.Require().NoError(json.Unmarshal(body.Data, &reg))
	s.False(reg.User.EmailVerified)
	s.True(reg.EmailSent)

	stored, err := s.container.Store.FindByEmail(context.Background(), "alice@x.com")
	s.Require().NoError(err)
	s.Require().NotNil(stored.VerificationCode)
	s.Regexp(`^\d{6}$`, *stored.VerificationCode)
	s.WithinDuration(before.Add(24*time.Hour), *stored.VerificationCodeExpiresAt, time.Minute)

	// login before verification is refused
	resp, body = s.post("/auth/login", map[string]string{"email": "alice@x.com", "password": "Password1"}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("UNVERIFIED_ACCOUNT", body.Code)
	s.True(body.RequiresVerification)

	// verify
	code := s.lastCode("alice@x.com")
	resp, body = s.post("/auth/verify-code", map[string]string{"email": "alice@x.com", "code": code}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, body.Message)
	var verified types.PublicUser
	s.Require().NoError(json.Unmarshal(body.Data, &verified))
	s.True(verified.EmailVerified)

	stored, err = s.container.Store.FindByEmail(context.Background(), "alice@x.com")
	s.Require().NoError(err)
	s.Nil(stored.VerificationCode)

	// same code again
	resp, body = s.post("/auth/verify-code", map[string]string{"email": "alice@x.com", "code": code}, "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("INVALID_CODE", body.Code)

	// login
	tokens := s.login("alice@x.com", "Password1")
	s.NotEmpty(tokens.AccessToken)
	s.NotEmpty(tokens.RefreshToken)
	s.Equal("Bearer", tokens.TokenType)
	s.Require().NotNil(tokens.User.LastLoginAt)

	resp, body = s.get("/auth/profile", tokens.AccessToken)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var profile types.PublicUser
	s.Require().NoError(json.Unmarshal(body.Data, &profile))
	s.Equal("alice", profile.Username)
	s.NotContains(string(body.Data), "password")

	// duplicate email creates nothing
	resp, body = s.post("/auth/register", map[string]string{"username": "alice2", "email": "alice@x.com", "password": "Password1"}, "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("DUPLICATE_IDENTITY", body.Code)
	_, err = s.container.Store.FindByUsername(context.Background(), "alice2")
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *E2ETestSuite) TestForgotPasswordIsSilent() {
	resp, _ := s.post("/auth/register", map[string]string{"username": "bob", "email": "bob@x.com", "password": "Password1"}, "")
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	knownResp, known := s.post("/auth/forgot-password", map[string]string{"email": "bob@x.com"}, "")
	unknownResp, unknown := s.post("/auth/forgot-password", map[string]string{"email": "nobody@x.com"}, "")

	s.Equal(http.StatusOK, knownResp.StatusCode)
	s.Equal(knownResp.StatusCode, unknownResp.StatusCode)
	s.True(unknown.Success)
	s.Equal(known.Message, unknown.Message)
	s.Equal(known.Data, unknown.Data)

	_, ok := s.mail.Last("nobody@x.com")
	s.False(ok)
}

func (s *E2ETestSuite) TestPasswordResetAndRefresh() {
	resp, _ := s.post("/auth/register", map[string]string{"username": "carol", "email": "carol@x.com", "password": "Password1"}, "")
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp, _ = s.post("/auth/verify-code", map[string]string{"email": "carol@x.com", "code": s.lastCode("carol@x.com")}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	first := s.login("carol@x.com", "Password1")

	resp, body := s.post("/auth/refresh", map[string]string{"refresh_token": first.RefreshToken}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, body.Message)
	var pair types.TokenPair
	s.Require().NoError(json.Unmarshal(body.Data, &pair))
	s.NotEmpty(pair.AccessToken)

	// an access token is not a refresh token
	resp, body = s.post("/auth/refresh", map[string]string{"refresh_token": first.AccessToken}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("INVALID_OR_EXPIRED_TOKEN", body.Code)

	resp, _ = s.post("/auth/forgot-password", map[string]string{"email": "carol@x.com"}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	token := s.lastResetToken("carol@x.com")

	resp, body = s.post("/auth/reset-password", map[string]string{"token": token, "new_password": "NewPassw0rd"}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, body.Message)

	resp, body = s.post("/auth/reset-password", map[string]string{"token": token, "new_password": "Another1pw"}, "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("INVALID_OR_EXPIRED_TOKEN", body.Code)

	resp, body = s.post("/auth/login", map[string]string{"email": "carol@x.com", "password": "Password1"}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("INVALID_CREDENTIALS", body.Code)
	s.login("carol@x.com", "NewPassw0rd")
}

func (s *E2ETestSuite) TestHealthAndPing() {
	resp, body := s.get("/healthz", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.True(body.Success)

	raw, err := s.client.Get(s.server.URL + "/ping")
	s.Require().NoError(err)
	defer raw.Body.Close()
	text, err := io.ReadAll(raw.Body)
	s.Require().NoError(err)
	s.Equal("pong", string(text))
}

func TestE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end suite in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}
