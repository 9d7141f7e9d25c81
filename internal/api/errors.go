package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

// Machine-readable error codes returned in the "code" field.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeDuplicateIdentity     = "DUPLICATE_IDENTITY"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeUnverifiedAccount     = "UNVERIFIED_ACCOUNT"
	CodeInvalidCode           = "INVALID_CODE"
	CodeCodeExpired           = "CODE_EXPIRED"
	CodeAlreadyVerified       = "ALREADY_VERIFIED"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeForbidden             = "FORBIDDEN"
	CodeNotFound              = "NOT_FOUND"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeInternal              = "INTERNAL_ERROR"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: the first sentinel err wraps wins.
var errorMappings = []errorMapping{
	{types.ErrValidation, http.StatusBadRequest, CodeValidation, ""},
	{types.ErrDuplicateIdentity, http.StatusBadRequest, CodeDuplicateIdentity, "Username or email is already registered"},
	{types.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password"},
	{types.ErrUnverifiedAccount, http.StatusUnauthorized, CodeUnverifiedAccount, "Please verify your email address before logging in"},
	{types.ErrInvalidCode, http.StatusBadRequest, CodeInvalidCode, "Invalid verification code"},
	{types.ErrCodeExpired, http.StatusBadRequest, CodeCodeExpired, "Verification code has expired, request a new one"},
	{types.ErrAlreadyVerified, http.StatusBadRequest, CodeAlreadyVerified, "Email address is already verified"},
	{types.ErrInvalidOrExpiredToken, http.StatusBadRequest, CodeInvalidOrExpiredToken, "Invalid or expired token"},
	{types.ErrInvalidToken, http.StatusUnauthorized, CodeInvalidOrExpiredToken, "Invalid or expired token"},
	{types.ErrRateLimitExceeded, http.StatusTooManyRequests, CodeRateLimitExceeded, "Too many attempts, please try again later"},
	{types.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required"},
	{types.ErrForbidden, http.StatusForbidden, CodeForbidden, "You do not have permission to perform this action"},
	{types.ErrUserNotFound, http.StatusNotFound, CodeUserNotFound, "User not found"},
	{types.ErrNotFound, http.StatusNotFound, CodeNotFound, "Requested resource not found"},
}

// Classify maps err to its HTTP status, code and client-safe message.
// Anything unrecognised is an internal error with a generic message.
func Classify(err error) (int, string, string) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Error()
		}
		return m.status, m.code, msg
	}
	return http.StatusInternalServerError, CodeInternal, "An internal error occurred"
}

// WriteError renders err in the standard envelope. Internal errors are logged with their cause.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	WriteErrorStatus(w, r, logger, err, 0)
}

// WriteErrorStatus is WriteError with the mapped status replaced when status is non-zero.
func WriteErrorStatus(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, status int) {
	mapped, code, msg := Classify(err)
	if status == 0 {
		status = mapped
	}
	if code == CodeInternal {
		logger.ErrorContext(r.Context(), "Request failed", slog.Any("error", err))
	}

	resp := types.Response{
		Success:   false,
		Message:   msg,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	}
	switch code {
	case CodeUnverifiedAccount:
		resp.RequiresVerification = true
	case CodeRateLimitExceeded:
		var rl *types.RateLimitError
		if errors.As(err, &rl) {
			resp.RetryAfterSeconds = rl.RetryAfterSeconds()
			w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
		}
	}
	WriteJSONResponse(w, r, status, resp)
}
