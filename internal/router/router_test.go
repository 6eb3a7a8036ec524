package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nback-go/internal/config"
	"nback-go/internal/repository"
	"nback-go/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type client struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func newServer(t *testing.T, mutate func(*config.ServerConfig)) *client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Server.SessionSecret = "test-secret"
	if mutate != nil {
		mutate(&cfg.Server)
	}
	store := repository.NewFileStore(t.TempDir(), cfg.Storage.StatsFile, zap.NewNop())
	trainer := services.NewTrainer(cfg, store, nil, rand.New(rand.NewSource(1)), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	runner := services.NewRunner(trainer, zap.NewNop(), services.WithTickInterval(time.Hour))
	runner.Start(ctx)

	engine, err := Setup(zap.NewNop(), cfg.Server, Deps{Runner: runner, Store: store})
	require.NoError(t, err)
	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-runner.Done()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(csrfTokenHeaderKey, c.token)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (c *client) fetchToken() {
	c.t.Helper()
	resp, body := c.do(http.MethodGet, "/api/csrf", nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	c.token = body["token"].(string)
	require.NotEmpty(c.t, c.token)
}

func (c *client) selectUser(name string) {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/api/users/"+name, nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode, body)
}

func TestStateChangesNeedCSRFToken(t *testing.T) {
	c := newServer(t, nil)
	resp, _ := c.do(http.MethodPost, "/api/users/alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	c.fetchToken()
	c.selectUser("alice")
}

func TestRoutesNeedSelectedProfile(t *testing.T) {
	c := newServer(t, nil)
	resp, _ := c.do(http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apiCSP, resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestSelectRejectsBadNames(t *testing.T) {
	c := newServer(t, nil)
	c.fetchToken()
	resp, _ := c.do(http.MethodPost, "/api/users/bad.name", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	c := newServer(t, nil)
	c.fetchToken()
	c.selectUser("alice")

	resp, state := c.do(http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", state["user"])
	assert.Equal(t, false, state["running"])

	resp, state = c.do(http.MethodPost, "/api/session/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, state["running"])

	resp, _ = c.do(http.MethodPost, "/api/session/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/api/session/press", gin.H{"modality": "position1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["accepted"], "no trial is showing before the first tick")

	resp, _ = c.do(http.MethodPost, "/api/session/press", gin.H{"modality": "smell"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/api/session/answer", gin.H{"key": "12"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/api/session/advance", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "dual mode is not self-paced")

	resp, state = c.do(http.MethodPost, "/api/session/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, state["paused"])

	resp, state = c.do(http.MethodPost, "/api/session/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, state["running"])

	resp, _ = c.do(http.MethodPost, "/api/session/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSetLevel(t *testing.T) {
	c := newServer(t, nil)
	c.fetchToken()
	c.selectUser("alice")

	resp, state := c.do(http.MethodPut, "/api/session/level", gin.H{"level": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 4, state["level"])
	assert.Equal(t, true, state["manual"])

	resp, _ = c.do(http.MethodPut, "/api/session/level", gin.H{"level": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileSwitchInvalidatesOtherBrowsers(t *testing.T) {
	c := newServer(t, nil)
	c.fetchToken()
	c.selectUser("alice")

	other := &client{t: t, base: c.base, http: &http.Client{}}
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	other.http.Jar = jar
	other.fetchToken()
	other.selectUser("bob")

	resp, _ := c.do(http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHistoryAndChart(t *testing.T) {
	c := newServer(t, nil)
	c.fetchToken()
	c.selectUser("alice")

	resp, body := c.do(http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["user"])
	assert.Empty(t, body["sessions"])

	resp, body = c.do(http.MethodGet, "/api/history/chart?mode=2&style=N", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "options")

	resp, _ = c.do(http.MethodGet, "/api/history/chart?style=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, c.base+"/api/history/chart?format=html", nil)
	require.NoError(t, err)
	page, err := c.http.Do(req)
	require.NoError(t, err)
	defer page.Body.Close()
	html, err := io.ReadAll(page.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, chartCSP, page.Header.Get("Content-Security-Policy"))
	assert.Contains(t, string(html), "echarts")
}

func TestSessionDetailNeedsDatabase(t *testing.T) {
	c := newServer(t, nil)
	c.fetchToken()
	c.selectUser("alice")

	resp, _ := c.do(http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = c.do(http.MethodGet, "/api/archive", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = c.do(http.MethodPut, "/api/users/alice/pin", gin.H{"pin": "1234"})
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestModes(t *testing.T) {
	c := newServer(t, nil)
	resp, body := c.do(http.MethodGet, "/api/modes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	modes := body["modes"].([]any)
	require.NotEmpty(t, modes)
	first := modes[0].(map[string]any)
	assert.EqualValues(t, 2, first["id"])
	assert.Equal(t, "D", first["shortName"])
}

func TestSelectIsRateLimited(t *testing.T) {
	c := newServer(t, func(s *config.ServerConfig) { s.SelectRateLimit = 2 })
	c.fetchToken()
	c.selectUser("alice")
	c.selectUser("alice")
	resp, _ := c.do(http.MethodPost, "/api/users/alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
