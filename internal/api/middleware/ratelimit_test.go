package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRealIP(t *testing.T) {
	t.Run("prefers first X-Forwarded-For entry", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1, 10.0.0.2")
		r.Header.Set("X-Real-IP", "198.51.100.9")
		assert.Equal(t, "203.0.113.7", GetRealIP(r))
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Real-IP", " 198.51.100.9 ")
		assert.Equal(t, "198.51.100.9", GetRealIP(r))
	})

	t.Run("falls back to RemoteAddr host", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.4:51234"
		assert.Equal(t, "192.0.2.4", GetRealIP(r))
	})

	t.Run("RemoteAddr without port passes through", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.4"
		assert.Equal(t, "192.0.2.4", GetRealIP(r))
	})
}

func TestKeyByUser(t *testing.T) {
	t.Run("authenticated user", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		ctx := context.WithValue(r.Context(), UserContextKey, &User{ID: "user_123"})
		assert.Equal(t, "user:user_123", KeyByUser(r.WithContext(ctx)))
	})

	t.Run("no user falls back to IP", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.4:51234"
		assert.Equal(t, "ip:192.0.2.4", KeyByUser(r))
	})
}

func TestKeyByAnonIP(t *testing.T) {
	t.Run("anonymous user keyed by IP", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.4:51234"
		ctx := context.WithValue(r.Context(), UserContextKey, &User{ID: AnonIDPrefix + "abc"})
		assert.Equal(t, "anon-ip:192.0.2.4", KeyByAnonIP(r.WithContext(ctx)))
	})

	t.Run("authenticated user skips the limit", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		ctx := context.WithValue(r.Context(), UserContextKey, &User{ID: "user_123"})
		assert.Equal(t, "", KeyByAnonIP(r.WithContext(ctx)))
	})

	t.Run("missing user treated as anonymous", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.4:51234"
		assert.Equal(t, "anon-ip:192.0.2.4", KeyByAnonIP(r))
	})
}

func TestUserIsAnonymous(t *testing.T) {
	assert.True(t, (*User)(nil).IsAnonymous())
	assert.True(t, (&User{ID: AnonIDPrefix + "550e8400"}).IsAnonymous())
	assert.False(t, (&User{ID: "user_123"}).IsAnonymous())
}
