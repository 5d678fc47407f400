package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fmea-api/internal/httputil"
	"github.com/redmonkez12/fmea-api/internal/user"
)

func guardedRouter(m *Middleware) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := GetClaimsFromContext(r.Context())
		httputil.RespondJSON(w, map[string]string{"role": string(claims.Role)}, http.StatusOK)
	})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(m.RequireAuth)
		r.Get("/equipment", ok)
		r.With(m.RequireRole(user.RoleAdmin)).Post("/equipment", ok)
	})
	return r
}

func issueToken(t *testing.T, svc TokenService, role user.Role) (string, *TokenClaims) {
	t.Helper()
	id := testIdentity()
	id.Role = role
	token, claims, err := svc.CreateToken(id, time.Hour)
	require.NoError(t, err)
	return token, claims
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Code
}

func TestRouteGuard(t *testing.T) {
	env := newTestEnv(t)
	m := NewMiddleware(env.tokens, env.sessions, "fmea_session")
	router := guardedRouter(m)

	adminToken, _ := issueToken(t, env.tokens, user.RoleAdmin)
	userToken, _ := issueToken(t, env.tokens, user.RoleUser)

	tests := []struct {
		name     string
		method   string
		header   string
		cookie   string
		wantCode int
		wantErr  string
	}{
		{"no session on admin route", http.MethodPost, "", "", http.StatusUnauthorized, httputil.CodeMissingAuth},
		{"user role on admin route", http.MethodPost, "Bearer " + userToken, "", http.StatusForbidden, httputil.CodeForbidden},
		{"admin role on admin route", http.MethodPost, "Bearer " + adminToken, "", http.StatusOK, ""},
		{"user role on read route", http.MethodGet, "Bearer " + userToken, "", http.StatusOK, ""},
		{"session cookie", http.MethodPost, "", adminToken, http.StatusOK, ""},
		{"malformed header", http.MethodGet, "Token " + adminToken, "", http.StatusUnauthorized, httputil.CodeInvalidAuthHeader},
		{"garbage token", http.MethodGet, "Bearer nope", "", http.StatusUnauthorized, httputil.CodeInvalidToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/equipment", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "fmea_session", Value: tc.cookie})
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, errorCode(t, rec))
			}
		})
	}
}

func TestRouteGuard_RevokedSession(t *testing.T) {
	env := newTestEnv(t)
	router := guardedRouter(NewMiddleware(env.tokens, env.sessions, "fmea_session"))

	token, claims := issueToken(t, env.tokens, user.RoleAdmin)
	require.NoError(t, env.sessions.RevokeSession(context.Background(), claims.TokenID, claims.ExpiresAt))

	req := httptest.NewRequest(http.MethodGet, "/equipment", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeSessionRevoked, errorCode(t, rec))
}

func TestRouteGuard_ExpiredSession(t *testing.T) {
	tokens, err := NewJWTService([]byte(testSecret))
	require.NoError(t, err)
	router := guardedRouter(NewMiddleware(tokens, nil, "fmea_session"))

	token, _ := issueToken(t, tokens, user.RoleAdmin)
	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	req := httptest.NewRequest(http.MethodGet, "/equipment", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeTokenExpired, errorCode(t, rec))
}

func TestAuthorize(t *testing.T) {
	admin := &TokenClaims{Identity: Identity{Role: user.RoleAdmin}}
	member := &TokenClaims{Identity: Identity{Role: user.RoleUser}}

	assert.ErrorIs(t, Authorize(nil, user.RoleAdmin), ErrUnauthorized)
	assert.ErrorIs(t, Authorize(nil), ErrUnauthorized)
	assert.ErrorIs(t, Authorize(member, user.RoleAdmin), ErrForbidden)
	assert.NoError(t, Authorize(admin, user.RoleAdmin))
	assert.NoError(t, Authorize(member, user.RoleAdmin, user.RoleUser))
	assert.NoError(t, Authorize(member))
}
