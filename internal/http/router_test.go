package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fmea-api/internal/auth"
	"github.com/redmonkez12/fmea-api/internal/config"
	"github.com/redmonkez12/fmea-api/internal/equipment"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/user"
)

type emptyEquipment struct{}

func (emptyEquipment) List(context.Context, equipment.ListFilter) ([]equipment.Equipment, error) {
	return []equipment.Equipment{}, nil
}

func (emptyEquipment) Get(context.Context, uuid.UUID) (*equipment.Equipment, error) {
	return nil, equipment.ErrNotFound
}

func (emptyEquipment) Create(context.Context, equipment.Input, uuid.UUID) (*equipment.Equipment, error) {
	return nil, equipment.ErrDuplicateTag
}

func (emptyEquipment) Update(context.Context, uuid.UUID, equipment.Input) (*equipment.Equipment, error) {
	return nil, equipment.ErrNotFound
}

func (emptyEquipment) Delete(context.Context, uuid.UUID) error {
	return equipment.ErrNotFound
}

func newTestRouter(t *testing.T, env string) (http.Handler, auth.TokenService) {
	t.Helper()

	tokens, err := auth.NewPasetoService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	cfg := &config.Config{Server: config.ServerConfig{
		Env:            env,
		TrustedOrigins: []string{"http://localhost:3000"},
	}}
	handlers := Handlers{Equipment: equipment.NewHandler(emptyEquipment{})}
	logger := logging.NewLoggerWithWriter(io.Discard, false)

	return NewRouter(cfg, handlers, auth.NewMiddleware(tokens, nil, "fmea_session"), logger), tokens
}

func bearer(t *testing.T, tokens auth.TokenService, role user.Role) string {
	t.Helper()
	token, _, err := tokens.CreateToken(auth.Identity{UserID: uuid.New(), Email: "a@example.com", Role: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, "prod")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'none'", rec.Header().Get("Content-Security-Policy"))
}

func TestRouter_Guards(t *testing.T) {
	router, tokens := newTestRouter(t, "prod")

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"profile without session", http.MethodGet, "/profile", "", http.StatusUnauthorized},
		{"uploads without session", http.MethodPost, "/uploads", "", http.StatusUnauthorized},
		{"update-password without session", http.MethodPut, "/update-password", "", http.StatusUnauthorized},
		{"equipment list as user", http.MethodGet, "/equipment", bearer(t, tokens, user.RoleUser), http.StatusOK},
		{"equipment create as user", http.MethodPost, "/equipment", bearer(t, tokens, user.RoleUser), http.StatusForbidden},
		{"equipment delete as user", http.MethodDelete, "/equipment/" + uuid.NewString(), bearer(t, tokens, user.RoleUser), http.StatusForbidden},
		{"equipment delete as admin", http.MethodDelete, "/equipment/" + uuid.NewString(), bearer(t, tokens, user.RoleAdmin), http.StatusNotFound},
		{"garbage token", http.MethodGet, "/equipment", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_SwaggerOnlyInDev(t *testing.T) {
	router, _ := newTestRouter(t, "prod")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "NOT_FOUND"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, "prod")

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
