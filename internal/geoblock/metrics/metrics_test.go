package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/geoblock/internal/geoblock/repos/registry"
)

type fixedStats registry.Stats

func (f fixedStats) Stats() registry.Stats { return registry.Stats(f) }

func TestMetrics_Counters(t *testing.T) {
	m := New(nil)

	m.ObserveCheck(ResultBlocked)
	m.ObserveCheck(ResultBlocked)
	m.ObserveCheck(ResultAllowed)
	m.ObserveSweep(3)
	m.ObserveSweep(0)
	m.SweepFailed()
	m.ObserveLookup(20 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ipChecks.WithLabelValues(ResultBlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ipChecks.WithLabelValues(ResultAllowed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ipChecks.WithLabelValues(ResultLocal)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(m.geoLookup))
}

func TestMetrics_GaugesFromStats(t *testing.T) {
	m := New(fixedStats{Permanent: 2, Temporal: 1, Attempts: 7})

	expected := `
# HELP geoblock_attempts Current size of the attempt log
# TYPE geoblock_attempts gauge
geoblock_attempts 7
# HELP geoblock_blocks Current number of blocks by kind
# TYPE geoblock_blocks gauge
geoblock_blocks{kind="permanent"} 2
geoblock_blocks{kind="temporal"} 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "geoblock_blocks", "geoblock_attempts")
	require.NoError(t, err)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(fixedStats{})
	m.ObserveCheck(ResultLocal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `geoblock_ip_checks_total{result="local"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheck(ResultAllowed)
		m.ObserveLookup(time.Second)
		m.ObserveSweep(1)
		m.SweepFailed()
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
