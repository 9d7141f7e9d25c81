package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-auth-service/internal/api"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

// ForgotPasswordMessage is returned for every forgot-password request, known email or not.
const ForgotPasswordMessage = "If an account exists for that email, a password reset link has been sent"

type HandlerImpl struct {
	logger      *slog.Logger
	authService AuthService
	accessTTL   time.Duration
}

func NewHandlerImpl(authService AuthService, accessTTL time.Duration, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:      logger,
		authService: authService,
		accessTTL:   accessTTL,
	}
}

func (h *HandlerImpl) decode(w http.ResponseWriter, r *http.Request, l *slog.Logger, dst any) bool {
	if err := api.DecodeJSONBody(w, r, dst); err != nil {
		l.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		api.WriteError(w, r, l, &types.ValidationError{Message: err.Error()})
		return false
	}
	return true
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an unverified account and emails a 6-digit verification code. Rate limited per client address.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.RegisterRequest true "Registration details"
// @Success      201 {object} types.Response{data=types.RegisterResponse}
// @Failure      400 {object} types.Response "VALIDATION_ERROR or DUPLICATE_IDENTITY"
// @Failure      429 {object} types.Response "RATE_LIMIT_EXCEEDED"
// @Failure      500 {object} types.Response
// @Router       /auth/register [post]
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Register"))

	var req types.RegisterRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	resp, err := h.authService.Register(r.Context(), ClientKey(r), req)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusCreated, "Registration successful, check your email for the verification code", resp)
}

// Login godoc
// @Summary      Log in
// @Description  Verifies credentials and returns an access token and a refresh token. Unverified accounts are refused.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.LoginRequest true "Credentials"
// @Success      200 {object} types.Response{data=types.LoginResponse}
// @Failure      400 {object} types.Response "VALIDATION_ERROR"
// @Failure      401 {object} types.Response "INVALID_CREDENTIALS or UNVERIFIED_ACCOUNT"
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Login"))

	var req types.LoginRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    resp.AccessToken,
		Path:     "/",
		MaxAge:   int(h.accessTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	api.SuccessResponse(w, r, http.StatusOK, "Login successful", resp)
}

// VerifyCode godoc
// @Summary      Verify email address
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.VerifyCodeRequest true "Email and code"
// @Success      200 {object} types.Response{data=types.PublicUser}
// @Failure      400 {object} types.Response "INVALID_CODE or CODE_EXPIRED"
// @Failure      404 {object} types.Response "USER_NOT_FOUND"
// @Router       /auth/verify-code [post]
func (h *HandlerImpl) VerifyCode(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "VerifyCode"))

	var req types.VerifyCodeRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	user, err := h.authService.VerifyCode(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "Email verified successfully", user)
}

// ResendCode godoc
// @Summary      Resend the verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.EmailRequest true "Account email"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.Response "ALREADY_VERIFIED"
// @Failure      404 {object} types.Response "USER_NOT_FOUND"
// @Router       /auth/resend-code [post]
func (h *HandlerImpl) ResendCode(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ResendCode"))

	var req types.EmailRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	if err := h.authService.ResendCode(r.Context(), req); err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "A new verification code has been sent", nil)
}

// ForgotPassword godoc
// @Summary      Request a password reset link
// @Description  Always answers with the same message so callers cannot learn whether an email is registered.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.EmailRequest true "Account email"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.Response "VALIDATION_ERROR"
// @Router       /auth/forgot-password [post]
func (h *HandlerImpl) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ForgotPassword"))

	var req types.EmailRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	if err := h.authService.ForgotPassword(r.Context(), req); err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, ForgotPasswordMessage, nil)
}

// ResetPassword godoc
// @Summary      Reset password with a token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.Response "INVALID_OR_EXPIRED_TOKEN or VALIDATION_ERROR"
// @Router       /auth/reset-password [post]
func (h *HandlerImpl) ResetPassword(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ResetPassword"))

	var req types.ResetPasswordRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	if err := h.authService.ResetPassword(r.Context(), req); err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "Password has been reset", nil)
}

// Refresh godoc
// @Summary      Exchange a refresh token
// @Description  Issues a new access token and a rotated refresh token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.RefreshTokenRequest true "Refresh token"
// @Success      200 {object} types.Response{data=types.TokenPair}
// @Failure      401 {object} types.Response "INVALID_OR_EXPIRED_TOKEN"
// @Router       /auth/refresh [post]
func (h *HandlerImpl) Refresh(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Refresh"))

	var req types.RefreshTokenRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	pair, err := h.authService.Refresh(r.Context(), req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidOrExpiredToken) {
			api.WriteErrorStatus(w, r, l, err, http.StatusUnauthorized)
			return
		}
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "Tokens refreshed", pair)
}

// GetProfile godoc
// @Summary      Get the authenticated user's profile
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.Response{data=types.PublicUser}
// @Failure      401 {object} types.Response "UNAUTHENTICATED"
// @Security     BearerAuth
// @Router       /auth/profile [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "GetProfile"))

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, l, types.ErrUnauthenticated)
		return
	}
	user, err := h.authService.GetProfile(r.Context(), userID)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "", user)
}

// UpdateProfile godoc
// @Summary      Update the authenticated user's profile
// @Description  Only the username can be changed here.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.UpdateProfileRequest true "Fields to update"
// @Success      200 {object} types.Response{data=types.PublicUser}
// @Failure      400 {object} types.Response "VALIDATION_ERROR or DUPLICATE_IDENTITY"
// @Failure      401 {object} types.Response "UNAUTHENTICATED"
// @Security     BearerAuth
// @Router       /auth/profile [put]
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "UpdateProfile"))

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, l, types.ErrUnauthenticated)
		return
	}
	var req types.UpdateProfileRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	user, err := h.authService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "Profile updated", user)
}

// ChangePassword godoc
// @Summary      Change the authenticated user's password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body types.ChangePasswordRequest true "Current and new password"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.Response "VALIDATION_ERROR"
// @Failure      401 {object} types.Response "INVALID_CREDENTIALS or UNAUTHENTICATED"
// @Security     BearerAuth
// @Router       /auth/change-password [post]
func (h *HandlerImpl) ChangePassword(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ChangePassword"))

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, l, types.ErrUnauthenticated)
		return
	}
	var req types.ChangePasswordRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	if err := h.authService.ChangePassword(r.Context(), userID, req); err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "Password changed", nil)
}

// CheckUsername godoc
// @Summary      Check username availability
// @Tags         Auth
// @Produce      json
// @Param        username path string true "Username to check"
// @Success      200 {object} types.Response{data=types.UsernameAvailability}
// @Failure      400 {object} types.Response "VALIDATION_ERROR"
// @Router       /auth/check-username/{username} [get]
func (h *HandlerImpl) CheckUsername(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "CheckUsername"))

	result, err := h.authService.CheckUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "", result)
}

// SetRole godoc
// @Summary      Change a user's role
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        request body types.SetRoleRequest true "New role"
// @Success      200 {object} types.Response{data=types.PublicUser}
// @Failure      400 {object} types.Response "VALIDATION_ERROR"
// @Failure      403 {object} types.Response "FORBIDDEN"
// @Failure      404 {object} types.Response "NOT_FOUND"
// @Security     BearerAuth
// @Router       /auth/admin/users/{id}/role [put]
func (h *HandlerImpl) SetRole(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "SetRole"))

	actorID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, l, types.ErrUnauthenticated)
		return
	}
	var req types.SetRoleRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	user, err := h.authService.SetRole(r.Context(), actorID, chi.URLParam(r, "id"), req)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "Role updated", user)
}

// DeleteUser godoc
// @Summary      Delete a user
// @Tags         Admin
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} types.Response
// @Failure      403 {object} types.Response "FORBIDDEN"
// @Failure      404 {object} types.Response "NOT_FOUND"
// @Security     BearerAuth
// @Router       /auth/admin/users/{id} [delete]
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "DeleteUser"))

	actorID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, l, types.ErrUnauthenticated)
		return
	}
	if err := h.authService.DeleteUser(r.Context(), actorID, chi.URLParam(r, "id")); err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "User deleted", nil)
}

// Health godoc
// @Summary      Readiness probe
// @Tags         Health
// @Produce      json
// @Success      200 {object} types.Response
// @Failure      503 {object} types.Response
// @Router       /healthz [get]
func (h *HandlerImpl) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Health(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "Health check failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, api.CodeInternal, "credential store unreachable")
		return
	}
	api.SuccessResponse(w, r, http.StatusOK, "ok", nil)
}
