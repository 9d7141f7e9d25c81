package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/httprate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-auth-service/app/observability/metrics"
	"github.com/FACorreiaa/go-auth-service/internal/api"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

type contextKey string

const identityKey contextKey = "identity"

// AccessTokenCookie is the cookie consulted when no Authorization header is sent.
const AccessTokenCookie = "access_token"

// IdentityFromContext returns the identity attached by Authenticate.
func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	id, ok := ctx.Value(identityKey).(types.Identity)
	return id, ok
}

// GetUserIDFromContext returns the authenticated user id, if any.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// extractToken reads the bearer token from the Authorization header, then the access_token cookie.
func extractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			return "", false
		}
		token = strings.TrimSpace(token)
		return token, token != ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func reject(ctx context.Context, reason string) {
	metrics.Get().AuthGateRejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Authenticate verifies the access token and reloads the user it names, so role and
// verification state always come from the store rather than from token claims.
func Authenticate(logger *slog.Logger, tokens AccessTokenVerifier, store CredentialStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			token, ok := extractToken(r)
			if !ok {
				l.DebugContext(ctx, "Missing or malformed bearer token")
				reject(ctx, "missing_token")
				api.WriteError(w, r, l, types.ErrUnauthenticated)
				return
			}

			claims, err := tokens.VerifyAccessToken(token)
			if err != nil {
				l.WarnContext(ctx, "Access token rejected")
				reject(ctx, "invalid_token")
				api.WriteError(w, r, l, types.ErrUnauthenticated)
				return
			}

			user, err := store.FindByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					l.WarnContext(ctx, "Token references unknown user", slog.String("userID", claims.UserID))
					reject(ctx, "unknown_user")
					api.WriteError(w, r, l, types.ErrUnauthenticated)
					return
				}
				api.WriteError(w, r, l, err)
				return
			}

			ctx = WithIdentity(ctx, types.Identity{
				UserID:        user.ID,
				Username:      user.Username,
				Role:          user.Role,
				EmailVerified: user.EmailVerified,
			})
			l.DebugContext(ctx, "Authentication successful", slog.String("userID", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin runs after Authenticate and lets only admins through.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, ok := IdentityFromContext(ctx)
			if !ok {
				reject(ctx, "missing_identity")
				api.WriteError(w, r, logger, types.ErrUnauthenticated)
				return
			}
			if id.Role != types.RoleAdmin {
				logger.WarnContext(ctx, "Admin route denied", slog.String("userID", id.UserID), slog.String("role", string(id.Role)))
				reject(ctx, "forbidden")
				api.WriteError(w, r, logger, types.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller for throttling with httprate's IP key: the remote
// address set by chi's RealIP without its port, IPv6 clients grouped by /64.
func ClientKey(r *http.Request) string {
	if host, ok := plainHost(r.RemoteAddr); ok {
		r = r.WithContext(r.Context())
		r.RemoteAddr = host
	}
	key, err := httprate.KeyByIP(r)
	if err != nil || key == "" {
		return "unknown"
	}
	return key
}

// plainHost rewrites IPv4-mapped and zoned addresses, which httprate would
// otherwise mask to "::" or leave unparsed.
func plainHost(remote string) (string, bool) {
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		addrPort, perr := netip.ParseAddrPort(remote)
		if perr != nil {
			return "", false
		}
		addr = addrPort.Addr()
	}
	if !addr.Is4In6() && addr.Zone() == "" {
		return "", false
	}
	return addr.WithZone("").Unmap().String(), true
}
