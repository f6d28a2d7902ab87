package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/store"
)

type fakeState struct {
	name    string
	enabled bool
}

func (f fakeState) ConfigName() string { return f.name }
func (f fakeState) Enabled() bool      { return f.enabled }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func decode(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

// TestHealthCheckEndpoint_MethodNotAllowed verifies non-GET requests are rejected.
func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	server := NewServer(":0", nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	server.healthCheckHandler(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthCheckResponse(t *testing.T) {
	t.Run("healthy with reachable Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := store.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
		require.NoError(t, err)
		defer client.Close()

		server := NewServer(":0", client, fakeState{name: "aqua", enabled: true}, nil, zap.NewNop())

		w := httptest.NewRecorder()
		server.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		response := decode(t, w)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "connected", response.Redis)
		assert.Equal(t, "aqua", response.Config)
		require.NotNil(t, response.Enabled)
		assert.True(t, *response.Enabled)
	})

	t.Run("unhealthy when Redis unavailable", func(t *testing.T) {
		server := NewServer(":0", failingPinger{}, fakeState{name: "aqua"}, nil, nil)

		w := httptest.NewRecorder()
		server.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		response := decode(t, w)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "disconnected", response.Redis)
		assert.Contains(t, response.Error, "connection refused")
		require.NotNil(t, response.Enabled)
		assert.False(t, *response.Enabled)
	})

	t.Run("redis disabled", func(t *testing.T) {
		server := NewServer(":0", nil, nil, nil, nil)

		w := httptest.NewRecorder()
		server.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "disabled", decode(t, w).Redis)
	})
}

func TestServerServesMetrics(t *testing.T) {
	collector := metrics.NewCollector("downlink", zap.NewNop())
	collector.RecordFrame("pn", "east")

	server := NewServer("127.0.0.1:0", nil, fakeState{name: "aqua", enabled: true}, collector, nil)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `downlink_frames_processed_total{stage="pn",stream="east"} 1`)
}

func TestServerStartFailsOnBadAddress(t *testing.T) {
	server := NewServer("256.0.0.1:bad", nil, nil, nil, nil)
	assert.Error(t, server.Start())
	assert.Equal(t, "", server.Addr())
	assert.NoError(t, server.Shutdown(context.Background()))
}
