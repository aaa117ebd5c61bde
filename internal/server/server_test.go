package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/bond-onboarding/internal/config"
	"github.com/jonathan/bond-onboarding/internal/db/sqlite"
	"github.com/jonathan/bond-onboarding/internal/server/ratelimit"
	"github.com/jonathan/bond-onboarding/internal/workflow"
	"github.com/jonathan/bond-onboarding/internal/workflow/steps"
)

// testServer wraps a Server backed by an in-memory SQLite store.
type testServer struct {
	*Server
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	jwtCfg := &config.JWTConfig{Secret: testJWTSecret, Issuer: config.DefaultJWTIssuer, ExpirationHours: 1}
	s := New(Config{
		Port:      0,
		JWT:       jwtCfg,
		RateLimit: &ratelimit.Config{Enabled: false},
	}, workflow.NewService(store, steps.Default()))
	t.Cleanup(s.rateLimiter.Stop)

	token, err := s.jwtService.GenerateToken("ops@example.com", uuid.Nil)
	require.NoError(t, err)
	return &testServer{Server: s, handler: s.Handler(), token: token}
}

// do sends a request with the operator token unless token is overridden.
func (ts *testServer) do(t *testing.T, method, path string, body any, token ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	bearer := ts.token
	if len(token) > 0 {
		bearer = token[0]
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (ts *testServer) createApplication(t *testing.T, companyID uuid.UUID) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/applications", map[string]string{
		"company_id":   companyID.String(),
		"company_name": "Acme Builders",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestHandleRegistry(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/registry", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, steps.Default().Version, body["version"])
	assert.Len(t, body["steps"], len(steps.Default().Steps))
}

func TestApplicationRoutes_RequireToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/applications", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/applications/"+uuid.NewString(), nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodOptions, "/applications", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRateLimitResponse(t *testing.T) {
	store, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	s := New(Config{RateLimit: &ratelimit.Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute}},
		workflow.NewService(store, steps.Default()))
	defer s.rateLimiter.Stop()

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/registry", nil))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/registry", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode(t, second)["error"])
}
