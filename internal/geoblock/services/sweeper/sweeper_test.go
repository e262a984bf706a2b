package sweeper

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/geoblock/internal/geoblock/common/clock"
	"github.com/haukened/geoblock/internal/geoblock/common/log"
	"github.com/haukened/geoblock/internal/geoblock/domain"
	"github.com/haukened/geoblock/internal/geoblock/metrics"
	"github.com/haukened/geoblock/internal/geoblock/repos/registry"
)

var _ Registry = (*registry.Registry)(nil)

// scriptedRegistry returns results from a script, panicking where asked.
type scriptedRegistry struct {
	mu      sync.Mutex
	results []int
	panics  map[int]bool
	calls   int
	swept   chan int
}

func newScriptedRegistry(results ...int) *scriptedRegistry {
	return &scriptedRegistry{results: results, panics: map[int]bool{}, swept: make(chan int, 16)}
}

func (r *scriptedRegistry) SweepExpired() int {
	r.mu.Lock()
	call := r.calls
	r.calls++
	r.mu.Unlock()

	defer func() { r.swept <- call }()
	if r.panics[call] {
		panic("boom")
	}
	if call < len(r.results) {
		return r.results[call]
	}
	return 0
}

// manualTicker lets a test fire ticks by hand.
type manualTicker struct {
	ch      chan time.Time
	stopped int32
}

func (m *manualTicker) factory(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() { atomic.StoreInt32(&m.stopped, 1) }
}

func waitSweep(t *testing.T, r *scriptedRegistry) int {
	t.Helper()
	select {
	case n := <-r.swept:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sweep")
		return -1
	}
}

func TestNew_Defaults(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	s, err := New(Options{Registry: newScriptedRegistry()})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.interval)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.newTicker)
}

func TestSweeper_RunSweepsImmediatelyAndOnTicks(t *testing.T) {
	reg := newScriptedRegistry(2, 0, 3)
	tk := &manualTicker{ch: make(chan time.Time)}
	m := metrics.New(nil)
	s, err := New(Options{Registry: reg, Interval: time.Hour, Logger: log.NewNoopLogger(), Metrics: m, NewTicker: tk.factory})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Equal(t, 0, waitSweep(t, reg))
	tk.ch <- time.Now()
	assert.Equal(t, 1, waitSweep(t, reg))
	tk.ch <- time.Now()
	assert.Equal(t, 2, waitSweep(t, reg))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tk.stopped))

	expected := `
# HELP geoblock_sweep_removed_total Expired temporal blocks removed by the sweeper
# TYPE geoblock_sweep_removed_total counter
geoblock_sweep_removed_total 5
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "geoblock_sweep_removed_total"))
}

func TestSweeper_SurvivesPanic(t *testing.T) {
	reg := newScriptedRegistry(0, 0, 4)
	reg.panics[1] = true
	tk := &manualTicker{ch: make(chan time.Time)}
	m := metrics.New(nil)
	s, err := New(Options{Registry: reg, Logger: log.NewNoopLogger(), Metrics: m, NewTicker: tk.factory})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitSweep(t, reg)
	tk.ch <- time.Now()
	assert.Equal(t, 1, waitSweep(t, reg))
	tk.ch <- time.Now()
	assert.Equal(t, 2, waitSweep(t, reg), "loop continues after a panicking sweep")

	expected := `
# HELP geoblock_sweep_errors_total Sweeps that failed
# TYPE geoblock_sweep_errors_total counter
geoblock_sweep_errors_total 1
`
	assert.Eventually(t, func() bool {
		return testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "geoblock_sweep_errors_total") == nil
	}, time.Second, 10*time.Millisecond)
}

func TestSweeper_SweepOnce(t *testing.T) {
	reg := newScriptedRegistry(7)
	reg.panics[1] = true
	s, err := New(Options{Registry: reg, Logger: log.NewNoopLogger()})
	require.NoError(t, err)

	n, err := s.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = s.SweepOnce()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, n)
}

func TestSweeper_CancelBeforeFirstTick(t *testing.T) {
	reg := newScriptedRegistry()
	s, err := New(Options{Registry: reg, Interval: time.Hour, Logger: log.NewNoopLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	waitSweep(t, reg)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should stop without waiting out the interval")
	}
}

func TestSweeper_WithRegistry(t *testing.T) {
	epoch := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(epoch)
	reg := registry.New(clk)
	reg.AddTemporalBlock(domain.TemporalBlock{CountryCode: "FR", BlockedUntil: epoch.Add(time.Minute)})
	reg.AddTemporalBlock(domain.TemporalBlock{CountryCode: "DE", BlockedUntil: epoch.Add(time.Hour)})

	s, err := New(Options{Registry: reg, Logger: log.NewNoopLogger()})
	require.NoError(t, err)

	n, err := s.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clk.Advance(time.Minute)
	n, err = s.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, reg.IsTemporarilyBlocked("FR"))
	assert.True(t, reg.IsTemporarilyBlocked("DE"))
}
