package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/config"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/services"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/store"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/token"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{AppEnv: "test"}
	codec, err := token.NewCodec(token.Options{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	users := store.NewMemoryUsers()
	authService := services.NewAuthService(users, store.NewMemoryTokens(), codec, services.WithPasswordCost(bcrypt.MinCost))

	app := fiber.New()
	Setup(app,
		middleware.Authenticate(codec, users),
		handlers.NewAuthHandler(authService, cfg),
		handlers.NewHealthHandler(nil),
		nil,
	)
	return app
}

type call struct {
	method string
	path   string
	body   any
	cookie *http.Cookie
	bearer string
}

func send(t *testing.T, app *fiber.App, c call) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t)

	resp, body := send(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: dto.RegisterRequest{
		Username: "amy", Email: "a@x.com", Password: "pw123456", Role: "student",
	}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var user dto.UserResponse
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Equal(t, "amy", user.Username)
	assert.Equal(t, "student", user.Role)
	assert.NotContains(t, string(body), "password")

	resp, body = send(t, app, call{method: http.MethodPost, path: "/api/auth/login", body: dto.LoginRequest{
		Email: "a@x.com", Password: "pw123456",
	}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var login dto.LoginResponse
	require.NoError(t, json.Unmarshal(body, &login))

	accessCookie := cookieNamed(resp, middleware.AccessCookie)
	refreshCookie := cookieNamed(resp, middleware.RefreshCookie)
	require.NotNil(t, accessCookie)
	require.NotNil(t, refreshCookie)
	assert.True(t, accessCookie.HttpOnly)
	assert.True(t, refreshCookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, refreshCookie.SameSite)
	assert.Equal(t, int((15 * time.Minute).Seconds()), accessCookie.MaxAge)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), refreshCookie.MaxAge)
	assert.Equal(t, login.AccessToken, accessCookie.Value)

	resp, body = send(t, app, call{method: http.MethodPost, path: "/api/auth/refresh",
		cookie: &http.Cookie{Name: middleware.RefreshCookie, Value: refreshCookie.Value}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var refreshed dto.RefreshResponse
	require.NoError(t, json.Unmarshal(body, &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)

	resp, body = send(t, app, call{method: http.MethodGet, path: "/api/auth/me", bearer: refreshed.AccessToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	resp, body = send(t, app, call{method: http.MethodPost, path: "/api/auth/logout",
		cookie: &http.Cookie{Name: middleware.RefreshCookie, Value: refreshCookie.Value}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	cleared := cookieNamed(resp, middleware.RefreshCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	resp, _ = send(t, app, call{method: http.MethodPost, path: "/api/auth/refresh",
		cookie: &http.Cookie{Name: middleware.RefreshCookie, Value: refreshCookie.Value}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = send(t, app, call{method: http.MethodPost, path: "/api/auth/logout",
		cookie: &http.Cookie{Name: middleware.RefreshCookie, Value: refreshCookie.Value}})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, string(body))
	assert.NotNil(t, cookieNamed(resp, middleware.AccessCookie))
}

func TestRefreshAndLogoutFromBody(t *testing.T) {
	app := newTestApp(t)

	resp, _ := send(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: dto.RegisterRequest{
		Username: "tom", Email: "t@x.com", Password: "pw123456", Role: "teacher",
	}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = send(t, app, call{method: http.MethodPost, path: "/api/auth/login", body: dto.LoginRequest{
		Email: "t@x.com", Password: "pw123456",
	}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	refreshCookie := cookieNamed(resp, middleware.RefreshCookie)
	require.NotNil(t, refreshCookie)

	resp, body := send(t, app, call{method: http.MethodPost, path: "/api/auth/refresh",
		body: dto.RefreshRequest{RefreshToken: refreshCookie.Value}})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	resp, body = send(t, app, call{method: http.MethodPost, path: "/api/auth/logout",
		body: dto.LogoutRequest{RefreshToken: refreshCookie.Value}})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	resp, _ = send(t, app, call{method: http.MethodPost, path: "/api/auth/refresh",
		body: dto.RefreshRequest{RefreshToken: refreshCookie.Value}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthErrors(t *testing.T) {
	app := newTestApp(t)
	register := dto.RegisterRequest{Username: "amy", Email: "a@x.com", Password: "pw123456"}

	resp, _ := send(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: register})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := send(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: register})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode, string(body))

	resp, wrongPassword := send(t, app, call{method: http.MethodPost, path: "/api/auth/login",
		body: dto.LoginRequest{Email: "a@x.com", Password: "wrong-password"}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, unknownEmail := send(t, app, call{method: http.MethodPost, path: "/api/auth/login",
		body: dto.LoginRequest{Email: "nobody@x.com", Password: "pw123456"}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, string(wrongPassword), string(unknownEmail))

	resp, _ = send(t, app, call{method: http.MethodPost, path: "/api/auth/refresh"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = send(t, app, call{method: http.MethodPost, path: "/api/auth/logout"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = send(t, app, call{method: http.MethodGet, path: "/api/auth/me"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, body := send(t, app, call{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "in-memory", health.DB)
}
