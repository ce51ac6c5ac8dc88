package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/message_board/internal/app"
	"github.com/Skotchmaster/message_board/internal/config"
	"github.com/Skotchmaster/message_board/internal/events"
	"github.com/Skotchmaster/message_board/internal/logging"
	"github.com/Skotchmaster/message_board/internal/tokens"
)

const testSecret = "test-secret"

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.DBDriver = config.DriverSQLite
	cfg.DatabaseURL = ":memory:"
	cfg.JWTSecret = testSecret
	return cfg
}

func newTestApp(t *testing.T, opts ...app.Option) (*app.App, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	opts = append([]app.Option{app.WithBcryptCost(bcrypt.MinCost), app.WithPublisher(rec)}, opts...)
	a, err := app.Build(context.Background(), testConfig(), logging.NewWithWriter(io.Discard, "error"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, rec
}

func do(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at"`
	User      *struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func register(t *testing.T, e *echo.Echo, username string) authBody {
	t.Helper()
	rec := do(t, e, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "pw-" + username,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}

func TestRegisterAndLogin(t *testing.T) {
	a, rec := newTestApp(t)

	reg := register(t, a.Echo, "alice")
	require.True(t, reg.Success)
	require.NotEmpty(t, reg.Token)
	require.NotNil(t, reg.ExpiresAt)
	require.NotNil(t, reg.User)
	assert.Equal(t, "alice", reg.User.Username)
	assert.NotContains(t, fmt.Sprint(reg), "pw-alice")

	id, err := a.Validator.Validate(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, id.UserID)

	login := do(t, a.Echo, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "pw-alice",
	})
	require.Equal(t, http.StatusOK, login.Code)
	body := decode[authBody](t, login)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Token)

	assert.Equal(t, []string{events.UserRegistered, events.UserLoggedIn}, rec.Types())
}

func TestRegisterRejections(t *testing.T) {
	a, _ := newTestApp(t)
	register(t, a.Echo, "bob")

	cases := []struct {
		name string
		body map[string]string
		msg  string
	}{
		{"duplicate username", map[string]string{"username": "bob", "email": "other@example.com", "password": "x"}, "username already taken"},
		{"duplicate email", map[string]string{"username": "bobby", "email": "bob@example.com", "password": "x"}, "email already registered"},
		{"missing password", map[string]string{"username": "carol", "email": "carol@example.com"}, ""},
		{"bad email", map[string]string{"username": "carol", "email": "carol", "password": "x"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, a.Echo, http.MethodPost, "/api/auth/register", "", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[authBody](t, rec)
			assert.False(t, body.Success)
			assert.Empty(t, body.Token)
			if tc.msg != "" {
				assert.Contains(t, body.Message, tc.msg)
			}
		})
	}

	rec := do(t, a.Echo, http.MethodPost, "/api/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	a, _ := newTestApp(t)
	register(t, a.Echo, "dave")

	wrongPw := do(t, a.Echo, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave", "password": "nope"})
	unknown := do(t, a.Echo, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ghost", "password": "nope"})

	require.Equal(t, http.StatusBadRequest, wrongPw.Code)
	require.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, decode[authBody](t, wrongPw).Message, decode[authBody](t, unknown).Message)
	assert.Equal(t, "invalid username or password", decode[authBody](t, unknown).Message)
}

func TestMeRequiresValidBearer(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	a, _ := newTestApp(t, app.WithTokenConfig(func(c *tokens.Config) { c.Now = clock }))

	reg := register(t, a.Echo, "erin")

	rec := do(t, a.Echo, http.MethodGet, "/api/users/me", reg.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"erin"`)
	assert.NotContains(t, rec.Body.String(), "password")

	forged, err := tokens.NewIssuer(tokens.Config{
		Secret:   []byte("another-secret"),
		Issuer:   "message-board",
		Audience: "message-board-client",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	bad, err := forged.Issue(reg.User.ID, "erin", "erin@example.com")
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		raw   string
	}{
		{name: "no header"},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong secret", token: bad.Token},
		{name: "wrong scheme", raw: "Basic " + reg.Token},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tc.token != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+tc.token)
			}
			if tc.raw != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.raw)
			}
			rec := httptest.NewRecorder()
			a.Echo.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"success":false,"message":"unauthorized"}`, rec.Body.String())
		})
	}

	now = now.Add(2 * time.Hour)
	rec = do(t, a.Echo, http.MethodGet, "/api/users/me", reg.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBoardOwnership(t *testing.T) {
	a, rec := newTestApp(t)
	alice := register(t, a.Echo, "alice")
	mallory := register(t, a.Echo, "mallory")

	res := do(t, a.Echo, http.MethodPost, "/api/threads", "", map[string]string{"title": "hello"})
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = do(t, a.Echo, http.MethodPost, "/api/threads", alice.Token, map[string]any{"title": "hello", "author_id": mallory.User.ID})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	thread := decode[struct {
		ID       uint `json:"id"`
		AuthorID uint `json:"author_id"`
	}](t, res)
	assert.Equal(t, alice.User.ID, thread.AuthorID)

	path := fmt.Sprintf("/api/threads/%d/messages", thread.ID)
	res = do(t, a.Echo, http.MethodPost, path, alice.Token, map[string]string{"content": "first"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	msg := decode[struct {
		ID       uint `json:"id"`
		AuthorID uint `json:"author_id"`
	}](t, res)
	assert.Equal(t, alice.User.ID, msg.AuthorID)

	msgPath := fmt.Sprintf("/api/messages/%d", msg.ID)
	res = do(t, a.Echo, http.MethodPatch, msgPath, mallory.Token, map[string]string{"content": "pwned"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = do(t, a.Echo, http.MethodDelete, msgPath, mallory.Token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = do(t, a.Echo, http.MethodPatch, msgPath, alice.Token, map[string]string{"content": "edited"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "edited")

	res = do(t, a.Echo, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "edited")
	assert.False(t, strings.Contains(res.Body.String(), "pwned"))

	res = do(t, a.Echo, http.MethodDelete, msgPath, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = do(t, a.Echo, http.MethodDelete, msgPath, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	assert.Contains(t, rec.Types(), events.MessageDeleted)
}

func TestPublicReadsAndHealth(t *testing.T) {
	a, _ := newTestApp(t)

	res := do(t, a.Echo, http.MethodGet, "/api/threads", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `[]`, res.Body.String())

	res = do(t, a.Echo, http.MethodGet, "/api/threads/999", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	res = do(t, a.Echo, http.MethodGet, "/api/threads/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	alice := register(t, a.Echo, "alice")
	res = do(t, a.Echo, http.MethodGet, fmt.Sprintf("/api/users/%d", alice.User.ID), "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"username":"alice"`)
	assert.NotContains(t, res.Body.String(), "email")
	assert.NotContains(t, res.Body.String(), "alice@example.com")

	res = do(t, a.Echo, http.MethodGet, "/api/users/999", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = do(t, a.Echo, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	res = do(t, a.Echo, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
}
