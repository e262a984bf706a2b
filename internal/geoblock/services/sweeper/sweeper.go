package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/haukened/geoblock/internal/geoblock/common/log"
	"github.com/haukened/geoblock/internal/geoblock/metrics"
)

// DefaultInterval is how often expired temporal blocks are swept when no
// interval is configured.
const DefaultInterval = 5 * time.Minute

// Registry is the store being swept.
type Registry interface {
	SweepExpired() int
}

// TickerFunc starts a ticker for interval and returns its channel and a stop
// function.
type TickerFunc func(interval time.Duration) (<-chan time.Time, func())

// Sweeper periodically removes expired temporal blocks.
type Sweeper struct {
	registry  Registry
	interval  time.Duration
	logger    log.Logger
	metrics   *metrics.Metrics
	newTicker TickerFunc
}

// Options configures a Sweeper.
type Options struct {
	Registry Registry
	Interval time.Duration
	Logger   log.Logger
	Metrics  *metrics.Metrics
	// options to inject for testing purposes
	NewTicker TickerFunc
}

func realTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// New creates a Sweeper. Registry is required.
func New(opts Options) (*Sweeper, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.NewTicker == nil {
		opts.NewTicker = realTicker
	}
	return &Sweeper{
		registry:  opts.Registry,
		interval:  opts.Interval,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		newTicker: opts.NewTicker,
	}, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A failed sweep is logged and the loop continues.
func (s *Sweeper) Run(ctx context.Context) {
	ticks, stop := s.newTicker(s.interval)
	defer stop()

	s.logger.Info(map[string]any{"interval": s.interval.String()}, "expiry sweeper started")
	s.tick()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(nil, "expiry sweeper stopped")
			return
		case <-ticks:
			s.tick()
		}
	}
}

func (s *Sweeper) tick() {
	removed, err := s.SweepOnce()
	if err != nil {
		s.metrics.SweepFailed()
		s.logger.Error(map[string]any{"error": err.Error()}, "sweep failed")
		return
	}
	s.metrics.ObserveSweep(removed)
	if removed > 0 {
		s.logger.Info(map[string]any{"removed": removed}, "removed expired temporal blocks")
	}
}

// SweepOnce runs a single sweep. A panic raised by the registry is returned
// as an error.
func (s *Sweeper) SweepOnce() (removed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()
	return s.registry.SweepExpired(), nil
}
