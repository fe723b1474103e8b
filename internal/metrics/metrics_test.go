package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-engine/internal/model"
)

func TestNewMetrics_RegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RejectionsTotal.WithLabelValues(string(model.RejectGuardBlocked)).Inc()
	m.CapitalInPlayPct.Set(17.03)

	counter := &dto.Metric{}
	require.NoError(t, m.RejectionsTotal.WithLabelValues("capital-guard-blocked").Write(counter))
	assert.Equal(t, 1.0, counter.GetCounter().GetValue())

	gauge := &dto.Metric{}
	require.NoError(t, m.CapitalInPlayPct.Write(gauge))
	assert.Equal(t, 17.03, gauge.GetGauge().GetValue())

	// A second registration on the same registry must panic.
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestServer_MetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.CyclesTotal.Inc()

	health := NewHealthStatus()
	health.SetRedisConnected(true)
	health.SetSQLiteOK(true)
	health.SetUniverse([]string{"BTCUSDT"}, []model.Timeframe{model.TF1m, model.TF5m})

	srv := NewServer(":0", health, reg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "confluence_cycles_total 1"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, []any{"1m", "5m"}, body["timeframes"])
}

func TestHealth_HaltedIsUnavailable(t *testing.T) {
	health := NewHealthStatus()
	health.SetRedisConnected(true)
	health.SetSQLiteOK(true)
	health.SetHalted(true)

	status, code, _ := health.Snapshot()
	assert.Equal(t, "unhealthy", status)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	health.SetHalted(false)
	health.SetSQLiteOK(false)
	status, code, _ = health.Snapshot()
	assert.Equal(t, "degraded", status)
	assert.Equal(t, http.StatusOK, code)
}
