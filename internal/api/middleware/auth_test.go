package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transportco2/transportco2/internal/api/middleware"
	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/session"
)

var testJWTConfig = auth.JWTConfig{
	SigningKey: "test-secret-key-for-testing-only",
	Issuer:     "transportco2",
	Audience:   "transportco2-app",
}

// createTestProvider creates an auth provider that only validates tokens.
func createTestProvider(t *testing.T) *auth.Provider {
	t.Helper()
	return auth.NewProvider(auth.ProviderConfig{
		Store:  session.NewMemoryStore(),
		JWT:    auth.NewJWTService(testJWTConfig),
		Logger: zerolog.Nop(),
	})
}

// issueToken mints an access token for a session with the given role.
func issueToken(t *testing.T, role auth.Role) (string, *session.Session) {
	t.Helper()
	sess := session.New("backend-token", session.User{ID: 42, Name: "Alice", Role: string(role)}, time.Hour)
	token, _, err := auth.NewJWTService(testJWTConfig).GenerateAccessToken(sess)
	require.NoError(t, err)
	return token, sess
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler := middleware.Auth(createTestProvider(t))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	handler := middleware.Auth(createTestProvider(t))(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"bearer lowercase no space", "bearer"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := middleware.Auth(createTestProvider(t))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid access token")
}

func TestAuth_WrongSigningKey(t *testing.T) {
	handler := middleware.Auth(createTestProvider(t))(okHandler())

	sess := session.New("tok", session.User{ID: 1, Role: "admin"}, time.Hour)
	forged, _, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "another-secret-key-entirely",
		Issuer:     testJWTConfig.Issuer,
		Audience:   testJWTConfig.Audience,
	}).GenerateAccessToken(sess)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	token, sess := issueToken(t, auth.RoleNormal)

	var captured middleware.Principal
	handler := middleware.Auth(createTestProvider(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		require.True(t, ok)
		captured = p
		assert.Equal(t, sess.ID, middleware.GetSessionID(r.Context()))
		assert.Equal(t, "42", middleware.GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sess.ID, captured.SessionID)
	assert.Equal(t, int64(42), captured.UserID)
	assert.Equal(t, auth.RoleNormal, captured.Role)
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	token, _ := issueToken(t, auth.RoleNormal)
	handler := middleware.Auth(createTestProvider(t))(okHandler())

	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody)
			req.Header.Set("Authorization", prefix+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	provider := createTestProvider(t)
	handler := middleware.Auth(provider)(middleware.RequireRole(auth.RoleAdmin)(okHandler()))

	tests := []struct {
		role auth.Role
		want int
	}{
		{auth.RoleAdmin, http.StatusOK},
		{auth.RoleNormal, http.StatusForbidden},
		{auth.RoleVisitor, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			token, _ := issueToken(t, tt.role)
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.RequireRole(auth.RoleNormal)(okHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserID_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody)
	assert.Empty(t, middleware.GetUserID(req.Context()))
	assert.Empty(t, middleware.GetSessionID(req.Context()))
}
