package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-auth-service/app/observability/metrics"
	"github.com/FACorreiaa/go-auth-service/internal/mailer"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the credential and session lifecycle used by the handlers.
type AuthService interface {
	Register(ctx context.Context, clientKey string, req types.RegisterRequest) (*types.RegisterResponse, error)
	Login(ctx context.Context, req types.LoginRequest) (*types.LoginResponse, error)
	VerifyCode(ctx context.Context, req types.VerifyCodeRequest) (*types.PublicUser, error)
	ResendCode(ctx context.Context, req types.EmailRequest) error
	ForgotPassword(ctx context.Context, req types.EmailRequest) error
	ResetPassword(ctx context.Context, req types.ResetPasswordRequest) error
	Refresh(ctx context.Context, req types.RefreshTokenRequest) (*types.TokenPair, error)

	GetProfile(ctx context.Context, userID string) (*types.PublicUser, error)
	UpdateProfile(ctx context.Context, userID string, req types.UpdateProfileRequest) (*types.PublicUser, error)
	ChangePassword(ctx context.Context, userID string, req types.ChangePasswordRequest) error
	CheckUsername(ctx context.Context, username string) (*types.UsernameAvailability, error)

	SetRole(ctx context.Context, actorID, targetID string, req types.SetRoleRequest) (*types.PublicUser, error)
	DeleteUser(ctx context.Context, actorID, targetID string) error

	Health(ctx context.Context) error
}

// ServiceDeps groups the collaborators of AuthServiceImpl.
type ServiceDeps struct {
	Store       CredentialStore
	Hasher      PasswordHasher
	Tokens      *TokenService
	Codes       *CodeIssuer
	Resets      *ResetIssuer
	Throttle    *RegistrationThrottle
	Mailer      mailer.Dispatcher
	MailTimeout time.Duration
	ResetURL    string
}

type AuthServiceImpl struct {
	logger      *slog.Logger
	store       CredentialStore
	hasher      PasswordHasher
	tokens      *TokenService
	codes       *CodeIssuer
	resets      *ResetIssuer
	throttle    *RegistrationThrottle
	mailer      mailer.Dispatcher
	mailTimeout time.Duration
	resetURL    string
	validate    *Validator
	metrics     *metrics.AppMetrics
	now         func() time.Time

	// dummyHash is verified against when the login email is unknown
	dummyHash func() string
}

func NewAuthService(deps ServiceDeps, logger *slog.Logger) *AuthServiceImpl {
	mailTimeout := deps.MailTimeout
	if mailTimeout <= 0 {
		mailTimeout = 10 * time.Second
	}
	s := &AuthServiceImpl{
		logger:      logger,
		store:       deps.Store,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		codes:       deps.Codes,
		resets:      deps.Resets,
		throttle:    deps.Throttle,
		mailer:      deps.Mailer,
		mailTimeout: mailTimeout,
		resetURL:    deps.ResetURL,
		validate:    NewValidator(),
		metrics:     metrics.Get(),
		now:         time.Now,
	}
	s.dummyHash = sync.OnceValue(func() string {
		hash, err := s.hasher.Hash("unknown-account-placeholder")
		if err != nil {
			logger.Error("Failed to prepare placeholder hash", slog.Any("error", err))
		}
		return hash
	})
	return s
}

func startServiceSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("AuthService").Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func outcome(err error) metric.MeasurementOption {
	result := "success"
	if err != nil {
		result = errorCode(err)
	}
	return metric.WithAttributes(attribute.String("outcome", result))
}

// errorCode gives a metric-friendly label for err.
func errorCode(err error) string {
	switch {
	case errors.Is(err, types.ErrValidation):
		return "validation_error"
	case errors.Is(err, types.ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, types.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, types.ErrUnverifiedAccount):
		return "unverified_account"
	case errors.Is(err, types.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, types.ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, types.ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, types.ErrInvalidOrExpiredToken):
		return "invalid_or_expired_token"
	case errors.Is(err, types.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, types.ErrUserNotFound), errors.Is(err, types.ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}

// sendMail delivers msg under its own deadline. Failures are logged and counted, never returned.
func (s *AuthServiceImpl) sendMail(ctx context.Context, msg mailer.Message) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
	defer cancel()
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send email",
			slog.String("to", msg.To), slog.String("kind", msg.Kind), slog.Any("error", err))
		s.metrics.EmailFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", msg.Kind)))
		return false
	}
	return true
}

func (s *AuthServiceImpl) Register(ctx context.Context, clientKey string, req types.RegisterRequest) (resp *types.RegisterResponse, err error) {
	ctx, span := startServiceSpan(ctx, "Register", attribute.String("email", req.Email))
	defer span.End()
	l := s.logger.With(slog.String("method", "Register"), slog.String("email", req.Email))
	start := time.Now()
	defer func() {
		s.metrics.RegisterRequestsTotal.Add(ctx, 1, outcome(err))
		s.metrics.RegisterDurationSeconds.Record(ctx, time.Since(start).Seconds())
		endSpan(span, err)
	}()

	if err = s.throttle.Allow(ctx, clientKey); err != nil {
		l.WarnContext(ctx, "Registration throttled", slog.String("client", clientKey))
		s.metrics.ThrottleRejectionsTotal.Add(ctx, 1)
		return nil, err
	}
	if err = s.validate.Struct(req); err != nil {
		return nil, err
	}

	if _, err = s.store.FindByEmail(ctx, req.Email); err == nil {
		return nil, types.ErrDuplicateIdentity
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("error checking email availability: %w", err)
	}
	if _, err = s.store.FindByUsername(ctx, req.Username); err == nil {
		return nil, types.ErrDuplicateIdentity
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("error checking username availability: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Insert(ctx, types.NewUser{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         types.RoleUser,
	})
	if err != nil {
		if errors.Is(err, types.ErrDuplicateIdentity) {
			l.InfoContext(ctx, "Concurrent registration lost the uniqueness race")
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", id))

	// the account exists from here on; a missing code is recovered through resend
	code, issueErr := s.codes.Issue(ctx, id)
	if issueErr != nil {
		l.ErrorContext(ctx, "Failed to issue verification code", slog.String("userID", id), slog.Any("error", issueErr))
	}
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading created user: %w", err)
	}

	sent := false
	if issueErr == nil {
		sent = s.sendMail(ctx, mailer.VerificationMessage(user.Email, user.Username, code))
	}
	l.InfoContext(ctx, "User registered", slog.String("userID", id), slog.Bool("email_sent", sent))
	return &types.RegisterResponse{User: user.Public(), EmailSent: sent}, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, req types.LoginRequest) (resp *types.LoginResponse, err error) {
	ctx, span := startServiceSpan(ctx, "Login", attribute.String("email", req.Email))
	defer span.End()
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", req.Email))
	defer func() {
		s.metrics.LoginAttemptsTotal.Add(ctx, 1, outcome(err))
		endSpan(span, err)
	}()

	if err = s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.InfoContext(ctx, "Login for unknown email")
			s.hasher.Verify(req.Password, s.dummyHash())
			return nil, types.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		l.InfoContext(ctx, "Login with wrong password", slog.String("userID", user.ID))
		return nil, types.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		l.InfoContext(ctx, "Login on unverified account", slog.String("userID", user.ID))
		return nil, types.ErrUnverifiedAccount
	}

	// The conditional write fails if a password reset landed after the hash was checked.
	user, err = s.store.RecordLogin(ctx, user.ID, user.PasswordHash, s.now())
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "Password changed while login was in flight")
			return nil, types.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error recording login: %w", err)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("error issuing tokens: %w", err)
	}
	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID))
	return &types.LoginResponse{TokenPair: *pair, User: user.Public()}, nil
}

func (s *AuthServiceImpl) VerifyCode(ctx context.Context, req types.VerifyCodeRequest) (pub *types.PublicUser, err error) {
	ctx, span := startServiceSpan(ctx, "VerifyCode", attribute.String("email", req.Email))
	defer span.End()
	defer func() {
		s.metrics.VerificationsTotal.Add(ctx, 1, outcome(err))
		endSpan(span, err)
	}()

	if err = s.validate.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.codes.Consume(ctx, req.Email, req.Code)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Email verified", slog.String("method", "VerifyCode"), slog.String("userID", user.ID))
	return user.Public(), nil
}

func (s *AuthServiceImpl) ResendCode(ctx context.Context, req types.EmailRequest) (err error) {
	ctx, span := startServiceSpan(ctx, "ResendCode", attribute.String("email", req.Email))
	defer span.End()
	defer func() { endSpan(span, err) }()
	l := s.logger.With(slog.String("method", "ResendCode"), slog.String("email", req.Email))

	if err = s.validate.Struct(req); err != nil {
		return err
	}
	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrUserNotFound
		}
		return fmt.Errorf("error loading user: %w", err)
	}
	code, err := s.codes.Resend(ctx, user.ID)
	if err != nil {
		return err
	}
	sent := s.sendMail(ctx, mailer.VerificationMessage(user.Email, user.Username, code))
	l.InfoContext(ctx, "Verification code reissued", slog.String("userID", user.ID), slog.Bool("email_sent", sent))
	return nil
}

// ForgotPassword behaves identically whether or not the email is registered.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, req types.EmailRequest) (err error) {
	ctx, span := startServiceSpan(ctx, "ForgotPassword")
	defer span.End()
	defer func() {
		s.metrics.PasswordResetsTotal.Add(ctx, 1, outcome(err), metric.WithAttributes(attribute.String("stage", "issue")))
		endSpan(span, err)
	}()

	if err = s.validate.Struct(req); err != nil {
		return err
	}
	token, user, err := s.resets.Issue(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("error issuing reset token: %w", err)
	}
	if user == nil {
		s.logger.InfoContext(ctx, "Password reset requested for unknown email", slog.String("method", "ForgotPassword"))
		return nil
	}
	s.sendMail(ctx, mailer.ResetMessage(user.Email, user.Username, s.resetURL, token))
	s.logger.InfoContext(ctx, "Password reset issued", slog.String("method", "ForgotPassword"), slog.String("userID", user.ID))
	return nil
}

func (s *AuthServiceImpl) ResetPassword(ctx context.Context, req types.ResetPasswordRequest) (err error) {
	ctx, span := startServiceSpan(ctx, "ResetPassword")
	defer span.End()
	defer func() {
		s.metrics.PasswordResetsTotal.Add(ctx, 1, outcome(err), metric.WithAttributes(attribute.String("stage", "consume")))
		endSpan(span, err)
	}()

	if err = s.validate.Struct(req); err != nil {
		return err
	}
	user, err := s.resets.Consume(ctx, req.Token, req.NewPassword)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Password reset completed", slog.String("method", "ResetPassword"), slog.String("userID", user.ID))
	return nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, req types.RefreshTokenRequest) (pair *types.TokenPair, err error) {
	ctx, span := startServiceSpan(ctx, "Refresh")
	defer span.End()
	defer func() {
		s.metrics.TokenRefreshesTotal.Add(ctx, 1, outcome(err))
		endSpan(span, err)
	}()

	if err = s.validate.Struct(req); err != nil {
		return nil, err
	}
	claims, err := s.tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, types.ErrInvalidOrExpiredToken
	}
	user, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	pair, err = s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("error issuing tokens: %w", err)
	}
	return pair, nil
}

func (s *AuthServiceImpl) loadUser(ctx context.Context, userID string) (*types.UserAuth, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

func (s *AuthServiceImpl) GetProfile(ctx context.Context, userID string) (*types.PublicUser, error) {
	ctx, span := startServiceSpan(ctx, "GetProfile", attribute.String("user.id", userID))
	defer span.End()

	user, err := s.loadUser(ctx, userID)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID string, req types.UpdateProfileRequest) (pub *types.PublicUser, err error) {
	ctx, span := startServiceSpan(ctx, "UpdateProfile", attribute.String("user.id", userID))
	defer span.End()
	defer func() { endSpan(span, err) }()
	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID))

	if err = s.validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Username == nil {
		return nil, &types.ValidationError{Message: "no profile fields to update"}
	}

	current, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if *req.Username == current.Username {
		return current.Public(), nil
	}
	if other, findErr := s.store.FindByUsername(ctx, *req.Username); findErr == nil && other.ID != userID {
		return nil, types.ErrDuplicateIdentity
	} else if findErr != nil && !errors.Is(findErr, types.ErrNotFound) {
		return nil, fmt.Errorf("error checking username availability: %w", findErr)
	}

	updated, err := s.store.Update(ctx, userID, types.UserUpdate{Username: req.Username})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUserNotFound
		}
		if errors.Is(err, types.ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating profile: %w", err)
	}
	l.InfoContext(ctx, "Profile updated")
	return updated.Public(), nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID string, req types.ChangePasswordRequest) (err error) {
	ctx, span := startServiceSpan(ctx, "ChangePassword", attribute.String("user.id", userID))
	defer span.End()
	defer func() { endSpan(span, err) }()

	if err = s.validate.Struct(req); err != nil {
		return err
	}
	if req.CurrentPassword == req.NewPassword {
		return &types.ValidationError{Field: "new_password", Message: "must differ from the current password"}
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		return types.ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	// a pending reset link must not be able to undo this change
	_, err = s.store.Update(ctx, userID, types.UserUpdate{
		PasswordHash: &hash,
		ResetToken:   &types.SecretUpdate{},
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrUserNotFound
		}
		return fmt.Errorf("error updating password: %w", err)
	}
	s.logger.InfoContext(ctx, "Password changed", slog.String("method", "ChangePassword"), slog.String("userID", userID))
	return nil
}

func (s *AuthServiceImpl) CheckUsername(ctx context.Context, username string) (*types.UsernameAvailability, error) {
	ctx, span := startServiceSpan(ctx, "CheckUsername")
	defer span.End()

	if err := s.validate.Var("username", username, "required,username"); err != nil {
		endSpan(span, err)
		return nil, err
	}
	_, err := s.store.FindByUsername(ctx, username)
	switch {
	case err == nil:
		endSpan(span, nil)
		return &types.UsernameAvailability{Username: username, Available: false}, nil
	case errors.Is(err, types.ErrNotFound):
		endSpan(span, nil)
		return &types.UsernameAvailability{Username: username, Available: true}, nil
	default:
		endSpan(span, err)
		return nil, fmt.Errorf("error checking username: %w", err)
	}
}

func (s *AuthServiceImpl) SetRole(ctx context.Context, actorID, targetID string, req types.SetRoleRequest) (pub *types.PublicUser, err error) {
	ctx, span := startServiceSpan(ctx, "SetRole", attribute.String("actor.id", actorID), attribute.String("user.id", targetID))
	defer span.End()
	defer func() { endSpan(span, err) }()

	if err = s.validate.Struct(req); err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, &types.ValidationError{Field: "id", Message: "administrators cannot change their own role"}
	}
	role := req.Role
	updated, err := s.store.Update(ctx, targetID, types.UserUpdate{Role: &role})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("error updating role: %w", err)
	}
	s.logger.InfoContext(ctx, "Role changed", slog.String("method", "SetRole"),
		slog.String("actorID", actorID), slog.String("userID", targetID), slog.String("role", string(role)))
	return updated.Public(), nil
}

func (s *AuthServiceImpl) DeleteUser(ctx context.Context, actorID, targetID string) (err error) {
	ctx, span := startServiceSpan(ctx, "DeleteUser", attribute.String("actor.id", actorID), attribute.String("user.id", targetID))
	defer span.End()
	defer func() { endSpan(span, err) }()

	if actorID == targetID {
		return &types.ValidationError{Field: "id", Message: "administrators cannot delete themselves"}
	}
	deleted, err := s.store.Delete(ctx, targetID)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if !deleted {
		return types.ErrNotFound
	}
	s.logger.InfoContext(ctx, "User deleted", slog.String("method", "DeleteUser"),
		slog.String("actorID", actorID), slog.String("userID", targetID))
	return nil
}

func (s *AuthServiceImpl) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}
