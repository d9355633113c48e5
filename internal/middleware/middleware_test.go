package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/autoedit/internal/auth"
)

const secret = "middleware-test-secret"

func newApp(t *testing.T, limit int) (*fiber.App, *AuthMiddleware) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	authMW := NewAuthMiddleware(secret)
	rl := NewRateLimiter(rdb, zerolog.Nop())

	app := fiber.New()
	app.Post("/jobs", authMW.Authenticate(), rl.SubmitLimit(limit), func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c))
	})
	return app, authMW
}

func request(t *testing.T, app *fiber.App, header string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAuthenticate(t *testing.T) {
	app, authMW := newApp(t, 100)

	assert.Equal(t, http.StatusUnauthorized, request(t, app, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "Token abc").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "Bearer not-a-jwt").StatusCode)

	token, err := authMW.GenerateToken("user-1", "u@example.com", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, request(t, app, "Bearer "+token).StatusCode)
}

// staticVerifier accepts exactly one token.
type staticVerifier struct {
	token string
	p     *auth.Principal
}

func (v staticVerifier) Verify(token string) (*auth.Principal, error) {
	if token != v.token {
		return nil, errors.New("unknown token")
	}
	return v.p, nil
}

func TestAuthenticateTriesVerifiersInOrder(t *testing.T) {
	oidc := staticVerifier{token: "sso-token", p: &auth.Principal{UserID: "sso-user", Source: auth.SourceOIDC}}
	authMW := NewAuthMiddleware(secret, nil, oidc)

	app := fiber.New()
	app.Get("/me", authMW.Authenticate(), func(c *fiber.Ctx) error {
		p := GetPrincipal(c)
		return c.SendString(p.Source + ":" + p.UserID)
	})
	get := func(token string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	status, body := get("sso-token")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "oidc:sso-user", body)

	legacy, err := authMW.GenerateToken("local-user", "", time.Hour)
	require.NoError(t, err)
	status, body = get(legacy)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hmac:local-user", body)

	status, _ = get("forged")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthenticateNotConfigured(t *testing.T) {
	authMW := NewAuthMiddleware("")
	assert.False(t, authMW.Enabled())

	app := fiber.New()
	app.Get("/me", authMW.Authenticate(), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGenerateTokenWithoutSecret(t *testing.T) {
	_, err := NewAuthMiddleware("").GenerateToken("user-1", "", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestSubmitLimit(t *testing.T) {
	app, authMW := newApp(t, 2)
	token, err := authMW.GenerateToken("user-1", "", time.Hour)
	require.NoError(t, err)

	first := request(t, app, "Bearer "+token)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "2", first.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header.Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, request(t, app, "Bearer "+token).StatusCode)

	limited := request(t, app, "Bearer "+token)
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.NotEmpty(t, limited.Header.Get("Retry-After"))

	// counters are per user
	other, err := authMW.GenerateToken("user-2", "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, request(t, app, "Bearer "+other).StatusCode)
}

func TestLimitDisabled(t *testing.T) {
	app, authMW := newApp(t, 0)
	token, err := authMW.GenerateToken("user-1", "", time.Hour)
	require.NoError(t, err)

	for range 5 {
		assert.Equal(t, http.StatusOK, request(t, app, "Bearer "+token).StatusCode)
	}
}
