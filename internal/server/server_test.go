package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/copyleftdev/xsession/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubRunner struct {
	mu   sync.Mutex
	reqs []actiontypes.Request
	out  actiontypes.Outcome
}

func (s *stubRunner) Run(ctx context.Context, req actiontypes.Request) actiontypes.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return s.out
}

func (s *stubRunner) setOutcome(out actiontypes.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = out
}

func (s *stubRunner) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func newTestRouter(t *testing.T, mutate func(*config.Config), runner Runner) http.Handler {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	logger := zaptest.NewLogger(t)
	return NewRouter(cfg, NewAPIHandler(runner, cfg.Server.PostInterval, logger), logger)
}

func post(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, nil, &stubRunner{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleRunAction(t *testing.T) {
	runner := &stubRunner{out: actiontypes.Outcome{Success: true, Text: "hello", Timestamp: "2025-01-01T00:00:00Z"}}
	h := newTestRouter(t, nil, runner)

	rec := post(t, h, `{"action":"tweet","args":["hello"]}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"text":"hello","timestamp":"2025-01-01T00:00:00Z"}`, rec.Body.String())
	require.Len(t, runner.reqs, 1)
	assert.Equal(t, actiontypes.NewRequest("tweet", "hello"), runner.reqs[0])
}

func TestHandleRunAction_FailedOutcomeIsStillOK(t *testing.T) {
	runner := &stubRunner{out: actiontypes.Outcome{Success: false, Error: "Unknown action: retweet"}}
	h := newTestRouter(t, nil, runner)

	rec := post(t, h, `{"action":"retweet"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var out actiontypes.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Unknown action: retweet", out.Error)
}

func TestHandleRunAction_BadRequests(t *testing.T) {
	runner := &stubRunner{}
	h := newTestRouter(t, nil, runner)

	rec := post(t, h, `{"action":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request body")

	rec = post(t, h, `{"args":["x"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No action specified")

	assert.Zero(t, runner.calls())
}

func TestAPIKeyAuth(t *testing.T) {
	runner := &stubRunner{out: actiontypes.Outcome{Success: true}}
	h := newTestRouter(t, func(c *config.Config) { c.Server.ApiKey = "k3y" }, runner)

	assert.Equal(t, http.StatusUnauthorized, post(t, h, `{"action":"login"}`, nil).Code)
	assert.Equal(t, http.StatusForbidden, post(t, h, `{"action":"login"}`, map[string]string{"X-API-Key": "nope"}).Code)
	assert.Equal(t, http.StatusOK, post(t, h, `{"action":"login"}`, map[string]string{"X-API-Key": "k3y"}).Code)
	assert.Equal(t, http.StatusOK, post(t, h, `{"action":"login"}`, map[string]string{"Authorization": "Bearer k3y"}).Code)
	assert.Equal(t, 2, runner.calls())

	// Health stays open.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostingRateLimit(t *testing.T) {
	runner := &stubRunner{out: actiontypes.Outcome{Success: true}}
	h := newTestRouter(t, func(c *config.Config) { c.Server.PostInterval = time.Hour }, runner)

	assert.Equal(t, http.StatusOK, post(t, h, `{"action":"tweet","args":["one"]}`, nil).Code)

	rec := post(t, h, `{"action":"reply","args":["1","two"]}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Reply rejected: posting too frequently"}`, rec.Body.String())

	// Logins are not posts.
	assert.Equal(t, http.StatusOK, post(t, h, `{"action":"login"}`, nil).Code)
	assert.Equal(t, 2, runner.calls())
}

func TestPostingRateLimit_FailedPostsDoNotCount(t *testing.T) {
	runner := &stubRunner{out: actiontypes.Outcome{Success: false, Error: "No tweet text provided"}}
	h := newTestRouter(t, func(c *config.Config) { c.Server.PostInterval = time.Hour }, runner)

	rec := post(t, h, `{"action":"tweet"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"No tweet text provided"}`, rec.Body.String())

	runner.setOutcome(actiontypes.Outcome{Success: false, Error: "Tweet failed: submit: not found"})
	assert.Equal(t, http.StatusOK, post(t, h, `{"action":"tweet","args":["hello"]}`, nil).Code)

	runner.setOutcome(actiontypes.Outcome{Success: true, Text: "hello"})
	rec = post(t, h, `{"action":"tweet","args":["hello"]}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"text":"hello"}`, rec.Body.String())

	// The successful post starts the interval.
	assert.Equal(t, http.StatusTooManyRequests, post(t, h, `{"action":"tweet","args":["again"]}`, nil).Code)
	assert.Equal(t, 3, runner.calls())
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, func(c *config.Config) {
		c.Server.ApiKey = "k3y"
		c.Server.AllowedOrigins = []string{"https://ops.example.com"}
	}, &stubRunner{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/actions", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
