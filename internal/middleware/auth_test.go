package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dcspace-backend/internal/auth"
	"dcspace-backend/internal/config"
	"dcspace-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWT() *auth.JWTManager {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "dcspace"
	return auth.NewJWTManager(cfg)
}

func TestAuthenticate(t *testing.T) {
	jwt := newJWT()
	m := NewAuthMiddleware(jwt)

	var seen models.Caller
	h := m.Authenticate(RequireRole(models.RoleAdmin, models.RoleProvider)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	adminToken, err := jwt.GenerateToken(models.Admin{ID: "a1"})
	require.NoError(t, err)
	customerToken, err := jwt.GenerateToken(models.Customer{ID: "c1"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + customerToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rents/1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	assert.Equal(t, models.Admin{ID: "a1"}, seen)
}

func TestQueryTokenOnlyForUpgrades(t *testing.T) {
	jwt := newJWT()
	h := NewAuthMiddleware(jwt).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	token, err := jwt.GenerateToken(models.Admin{ID: "a1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/events/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events/ws?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	h := PanicRecovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestAccessLoggerSeesCaller(t *testing.T) {
	l := NewAccessLogger()
	defer l.Close()

	var info *requestInfo
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ = r.Context().Value(requestInfoKey).(*requestInfo)
		WithCaller(r.Context(), models.Customer{ID: "c9"})
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rents", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, info)
	assert.Equal(t, models.Customer{ID: "c9"}, info.caller)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}
