// Package httpapi exposes the blocking use cases over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/netutil"

	"github.com/haukened/geoblock/internal/geoblock/common/log"
)

// Options configures the HTTP server.
type Options struct {
	// Addr is the host:port to listen on.
	Addr string
	// MaxConnections caps concurrent connections; zero means unlimited.
	MaxConnections int
	// TrustedProxies are the addresses or CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string
	// Dev enables gin debug mode.
	Dev bool

	Service BlockingService
	Stats   StatsSource
	// Metrics, if set, is served on /metrics.
	Metrics http.Handler
	Logger  log.Logger
}

// Server serves the API over HTTP.
type Server struct {
	addr     string
	maxConns int
	service  BlockingService
	stats    StatsSource
	logger   log.Logger
	engine   *gin.Engine

	mu       sync.RWMutex
	running  bool
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// New builds the router. It does not bind a socket until Start.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("blocking service is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.Dev {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		addr:     opts.Addr,
		maxConns: opts.MaxConnections,
		service:  opts.Service,
		stats:    opts.Stats,
		logger:   opts.Logger,
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	engine.Use(recovery(opts.Logger), requestLogger(opts.Logger))
	engine.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "route not found")
	})

	api := engine.Group("/api")
	{
		countries := api.Group("/countries")
		countries.POST("/block", s.blockCountry)
		countries.DELETE("/block/:countryCode", s.unblockCountry)
		countries.GET("/blocked", s.listBlocked)
		countries.POST("/temporal-block", s.temporalBlock)

		ip := api.Group("/ip")
		ip.GET("/check-block", s.checkBlock)
		ip.GET("/lookup", s.lookupIP)

		logs := api.Group("/logs")
		logs.GET("/blocked-attempts", s.blockedAttempts)
	}
	engine.GET("/healthz", s.health)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	s.engine = engine
	return s, nil
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Start binds the listener and serves in the background. The server stops
// when ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("HTTP server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})

	s.srv = srv
	s.listener = ln
	s.done = done
	s.running = true

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(map[string]any{"error": err.Error()}, "HTTP server failed")
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Stop(shutdownCtx)
		case <-done:
		}
	}()

	s.logger.Info(map[string]any{
		"address":         ln.Addr().String(),
		"max_connections": s.maxConns,
	}, "HTTP server started")
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	srv, done := s.srv, s.done
	s.running = false
	s.mu.Unlock()

	err := srv.Shutdown(ctx)
	<-done
	s.logger.Info(map[string]any{"address": s.Address()}, "HTTP server stopped")
	return err
}

// Address returns the bound address while running, else the configured one.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
