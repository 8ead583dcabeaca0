package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shyam-habarakada/agent-md/internal/config"
	"github.com/shyam-habarakada/agent-md/internal/invoker"
	"github.com/shyam-habarakada/agent-md/internal/manifest"
	"github.com/shyam-habarakada/agent-md/internal/mcp"
)

type fakeRelayStatus struct {
	connected bool
	pending   int
}

func (f *fakeRelayStatus) Connected() bool { return f.connected }
func (f *fakeRelayStatus) Pending() int    { return f.pending }

type originRecorder struct {
	origin string
}

func (o *originRecorder) SetOrigin(origin string) { o.origin = origin }

type noTarget struct{}

func (noTarget) Origin(ctx context.Context) (string, bool) { return "", false }

func (noTarget) Registry(contract *manifest.Contract) invoker.ActionRegistry { return nil }

func newTestServer(t *testing.T) (*Server, *manifest.Cache, *originRecorder) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cache := manifest.NewCache(logger)
	resolver := manifest.NewResolver(
		manifest.NewFetcher("/agent.md", 2*time.Second, logger),
		manifest.NewParser(logger),
		cache,
		logger,
	)
	dispatcher := mcp.NewDispatcher("agentmd", resolver, invoker.New(logger), noTarget{}, nil, logger)

	cfg := &config.HTTPConfig{Enabled: true, Host: "127.0.0.1", Port: 0}
	origin := &originRecorder{}
	server := NewServer(cfg, dispatcher, cache, &fakeRelayStatus{connected: true, pending: 2}, origin, nil, logger)
	return server, cache, origin
}

func doRequest(t *testing.T, server *Server, method, path string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestServer_Health(t *testing.T) {
	server, _, _ := newTestServer(t)

	code, body := doRequest(t, server, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["relay_connected"])
	assert.Equal(t, float64(2), body["relay_pending"])
	assert.NotEmpty(t, body["session_id"])
}

func TestServer_ContractsSnapshot(t *testing.T) {
	server, cache, _ := newTestServer(t)
	cache.Put("http://localhost:3000", &manifest.Contract{AppName: "Todo App"})

	code, body := doRequest(t, server, http.MethodGet, "/contracts")
	assert.Equal(t, http.StatusOK, code)

	contracts, ok := body["contracts"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, contracts, "http://localhost:3000")

	entry := contracts["http://localhost:3000"].(map[string]interface{})
	assert.Equal(t, "Todo App", entry["app_name"])
}

func TestServer_ToolsEmptyWithoutOrigin(t *testing.T) {
	server, _, _ := newTestServer(t)

	code, body := doRequest(t, server, http.MethodGet, "/tools")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["origin"])
	assert.Empty(t, body["tools"])
}

func TestServer_Stats(t *testing.T) {
	server, _, _ := newTestServer(t)

	code, body := doRequest(t, server, http.MethodGet, "/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "requests_total")
	assert.Contains(t, body, "tool_calls_total")
}

func TestServer_InvalidateClearsCache(t *testing.T) {
	server, cache, _ := newTestServer(t)
	cache.Put("http://localhost:3000", &manifest.Contract{AppName: "Todo App"})

	code, body := doRequest(t, server, http.MethodPost, "/invalidate")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "invalidated", body["status"])

	_, ok := cache.Get("http://localhost:3000")
	assert.False(t, ok)
}

func TestServer_SetOriginInvalidatesContracts(t *testing.T) {
	server, cache, origin := newTestServer(t)
	cache.Put("http://old.example", &manifest.Contract{AppName: "Old App"})

	req := httptest.NewRequest(http.MethodPost, "/origin",
		strings.NewReader(`{"origin":"http://localhost:5173"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", origin.origin)

	_, ok := cache.Get("http://old.example")
	assert.False(t, ok)
}

func TestServer_SetOriginRequiresBody(t *testing.T) {
	server, _, origin := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/origin", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, origin.origin)
}

func TestServer_StartDisabledIsNoOp(t *testing.T) {
	server, _, _ := newTestServer(t)
	server.config = &config.HTTPConfig{Enabled: false}

	require.NoError(t, server.Start())
	assert.Nil(t, server.httpServer)
	require.NoError(t, server.Shutdown())
}
