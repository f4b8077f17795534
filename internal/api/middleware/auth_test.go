package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse-api/internal/api/middleware"
)

const testSecret = "test-secret-key-that-is-long-enough-0123"

func signToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops@stockpulse.dev",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedHandler(t *testing.T) http.Handler {
	t.Helper()

	auth := middleware.NewAuthMiddleware(testSecret)
	return auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := middleware.GetSubject(r)
		require.True(t, ok)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(subject))
	}))
}

func TestAuthenticate(t *testing.T) {
	t.Run("accepts a valid token and exposes the subject", func(t *testing.T) {
		handler := protectedHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ops@stockpulse.dev", rec.Body.String())
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		handler := protectedHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a malformed header", func(t *testing.T) {
		handler := protectedHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		handler := protectedHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, time.Now().Add(-time.Hour)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Token expired", resp["error"])
	})

	t.Run("rejects a token signed with the wrong secret", func(t *testing.T) {
		handler := protectedHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "some-other-secret-that-is-also-long!", time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
