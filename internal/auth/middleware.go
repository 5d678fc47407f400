package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/httputil"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const ClaimsContextKey ContextKey = "session_claims"

// RevocationChecker reports logged-out sessions
type RevocationChecker interface {
	IsSessionRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Middleware guards routes with the session token
type Middleware struct {
	tokenService TokenService
	revocations  RevocationChecker
	cookieName   string
}

func NewMiddleware(tokenService TokenService, revocations RevocationChecker, cookieName string) *Middleware {
	return &Middleware{
		tokenService: tokenService,
		revocations:  revocations,
		cookieName:   cookieName,
	}
}

// RequireAuth validates the session token and stores its claims in the
// request context. Requests without a valid session get 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		token, err := SessionToken(r, m.cookieName)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondErrorWithCode(w, "session has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		if m.revocations != nil {
			revoked, err := m.revocations.IsSessionRevoked(r.Context(), claims.TokenID)
			if err != nil {
				logger.Error("failed to check session revocation", "error", err.Error())
				httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
				return
			}
			if revoked {
				httputil.RespondErrorWithCode(w, "session has been revoked", httputil.CodeSessionRevoked, http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole allows the request only when the session role is one of roles.
// It must run after RequireAuth.
func (m *Middleware) RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := GetClaimsFromContext(r.Context())

			switch err := Authorize(claims, roles...); {
			case errors.Is(err, ErrUnauthorized):
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			case errors.Is(err, ErrForbidden):
				logging.GetLoggerFromContext(r.Context()).Warn("role not allowed",
					"user_id", claims.UserID, "role", claims.Role, "allowed", roles)
				httputil.RespondErrorWithCode(w, "insufficient permissions", httputil.CodeForbidden, http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Authorize checks a session against an allowed role set. An empty set
// admits any authenticated session.
func Authorize(claims *TokenClaims, allowed ...user.Role) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if len(allowed) > 0 && !slices.Contains(allowed, claims.Role) {
		return ErrForbidden
	}
	return nil
}

// WithClaims returns a context carrying the session claims
func WithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// GetClaimsFromContext extracts the session claims from the request context
func GetClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*TokenClaims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return claims.UserID, true
}
