package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRootAndHealthz(t *testing.T) {
	h := NewRouter(Options{Checks: map[string]Check{
		"store": func(context.Context) error { return nil },
	}})

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bot is running.", rec.Body.String())

	rec = get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "ok", rep.Status)
	assert.Equal(t, "ok", rep.Checks["store"])

	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code, "metrics disabled without a gatherer")
}

func TestHealthzReportsFailingCheck(t *testing.T) {
	h := NewRouter(Options{Checks: map[string]Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
		"store": func(context.Context) error { return nil },
	}})

	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var rep report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "degraded", rep.Status)
	assert.Equal(t, "connection refused", rep.Checks["redis"])
	assert.Equal(t, "ok", rep.Checks["store"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewRouter(Options{Gatherer: reg, Registerer: reg})

	get(t, h, "/")
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_http_requests_total")
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "relay_http_requests_total"), "one series per route")
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewRouter(Options{})) }()
	cancel()
	assert.NoError(t, <-done)
}
