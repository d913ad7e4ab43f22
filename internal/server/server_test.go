package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"libris/internal/config"
	"libris/internal/models"
	"libris/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "Blue-Harbor-Lantern-42"

type testEnv struct {
	t      *testing.T
	server *Server
	app    *fiber.App
	db     *gorm.DB
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		SecretKey:            "test-secret-key",
		Env:                  "test",
		AllowedOrigins:       "http://localhost:3000",
		FeatureFlags:         "html_forms=on",
		PageSize:             10,
		MediaRoot:            t.TempDir(),
		MediaURL:             "/media/",
		ImageMaxUploadSizeMB: 2,
		ImageMaxDimension:    64,
		SessionCookieName:    "sessionid",
		SessionTTLHours:      1,
	}
}

// newTestEnv builds the full app over SQLite and, when withRedis is set,
// a miniredis-backed session store.
func newTestEnv(t *testing.T, withRedis bool, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	for _, f := range tweak {
		f(cfg)
	}

	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
	}

	db := testutil.NewTestDB(t)
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	app, err := s.NewApp()
	require.NoError(t, err)

	return &testEnv{t: t, server: s, app: app, db: db}
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	token       string
	auth        string
	cookies     []*http.Cookie
	headers     map[string]string
}

func (e *testEnv) do(r request) *http.Response {
	e.t.Helper()
	req := httptest.NewRequest(r.method, r.path, r.body)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Token "+r.token)
	}
	if r.auth != "" {
		req.Header.Set("Authorization", r.auth)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	return resp
}

func (e *testEnv) json(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var reader io.Reader
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
		contentType = fiber.MIMEApplicationJSON
	}
	return e.do(request{method: method, path: path, body: reader, contentType: contentType, token: token})
}

// form submits values the way a browser would: it first loads a page to
// pick up the CSRF cookie, then posts the token back with the form.
func (e *testEnv) form(method, path string, values url.Values, cookies ...*http.Cookie) *http.Response {
	e.t.Helper()
	token := e.csrfCookie(cookies...)
	withToken := maps.Clone(values)
	if withToken == nil {
		withToken = url.Values{}
	}
	withToken.Set(csrfFormField, token.Value)
	return e.rawForm(method, path, withToken, append(cookies, token)...)
}

func (e *testEnv) rawForm(method, path string, values url.Values, cookies ...*http.Cookie) *http.Response {
	e.t.Helper()
	return e.do(request{
		method:      method,
		path:        path,
		body:        strings.NewReader(values.Encode()),
		contentType: fiber.MIMEApplicationForm,
		cookies:     cookies,
	})
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "sessionid" && c.Value != "" {
			return c
		}
	}
	return nil
}

// csrfCookie loads the registration page and returns the CSRF cookie.
func (e *testEnv) csrfCookie(cookies ...*http.Cookie) *http.Cookie {
	e.t.Helper()
	resp := e.do(request{method: http.MethodGet, path: pathRegister, cookies: cookies})
	_ = resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == csrfCookieName && c.Value != "" {
			return c
		}
	}
	require.FailNow(e.t, "no csrf cookie issued")
	return nil
}

type registered struct {
	ID    uint
	Token string
}

// register signs a user up through the API and returns their id and token.
func (e *testEnv) register(username string) registered {
	e.t.Helper()
	resp := e.json(http.MethodPost, "/api/register/", "", map[string]any{
		"email":            username + "@example.com",
		"username":         username,
		"password":         testPassword,
		"password_confirm": testPassword,
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	body := decode[authResponse](e.t, resp)
	require.NotEmpty(e.t, body.Token)
	return registered{ID: body.User.ID, Token: body.Token}
}

func (e *testEnv) makeStaff(id uint, superuser bool) {
	e.t.Helper()
	require.NoError(e.t, e.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"is_staff": true, "is_superuser": superuser}).Error)
}

func (e *testEnv) createGenre(token, title string) uint {
	e.t.Helper()
	resp := e.json(http.MethodPost, "/api/genres/", token, map[string]any{"title": title})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	return decode[genreResponse](e.t, resp).ID
}

func (e *testEnv) createBook(token, title string, extra map[string]any) *http.Response {
	e.t.Helper()
	body := map[string]any{"title": title, "year_published": 2001, "pages": 120}
	for k, v := range extra {
		body[k] = v
	}
	return e.json(http.MethodPost, "/api/books/", token, body)
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		env := newTestEnv(t, false)

		resp := env.json(http.MethodGet, "/health/live", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "up", decode[map[string]any](t, resp)["status"])

		resp = env.json(http.MethodGet, "/health/ready", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]any](t, resp)
		assert.Equal(t, "healthy", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "disabled", checks["redis"])
	})

	t.Run("with redis", func(t *testing.T) {
		env := newTestEnv(t, true)
		resp := env.json(http.MethodGet, "/health/ready", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		checks := decode[map[string]any](t, resp)["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["redis"])
	})
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t, false)
	resp := env.json(http.MethodGet, "/api/unknown/", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decode[models.ErrorResponse](t, resp).Error)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/books/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), csrfHeaderName)
}

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.NewFieldError("title", "x"), http.StatusBadRequest},
		{models.NewUnauthorizedError("x"), http.StatusUnauthorized},
		{models.NewForbiddenError("x"), http.StatusForbidden},
		{models.NewNotFoundError("Book", 1), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapServiceError(tc.err), "%v", tc.err)
	}
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/post/", safeNext("/post/"))
	assert.Equal(t, "/", safeNext(""))
	assert.Equal(t, "/", safeNext("https://evil.example/"))
	assert.Equal(t, "/", safeNext("//evil.example/"))
	assert.Equal(t, "/", safeNext(`/\evil.example`))
}
