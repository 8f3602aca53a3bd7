package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/getmockd/htmlshot/pkg/config"
	"github.com/getmockd/htmlshot/pkg/logging"
	"github.com/getmockd/htmlshot/pkg/metrics"
	"github.com/getmockd/htmlshot/pkg/ratelimit"
	"github.com/getmockd/htmlshot/pkg/render"
	"github.com/getmockd/htmlshot/pkg/storage"
)

// Options holds the collaborators of a Server.
type Options struct {
	Config   *config.Config
	Renderer render.Renderer
	// Store is nil when storage is disabled.
	Store   storage.ObjectStore
	Logger  *slog.Logger
	Metrics *metrics.Service
	Version string
}

// Server is the htmlshot HTTP API.
type Server struct {
	cfg      *config.Config
	renderer render.Renderer
	store    storage.ObjectStore
	log      *slog.Logger
	metrics  *metrics.Service
	limiter  *ratelimit.PerIPLimiter
	auth     *authenticator
	version  string
	started  time.Time
	now      func() time.Time

	handler    http.Handler
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds the API and its middleware chain.
func NewServer(opts Options) (*Server, error) {
	if opts.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		cfg:      cfg,
		renderer: opts.Renderer,
		store:    opts.Store,
		log:      logging.OrNop(opts.Logger).With("component", "api"),
		metrics:  opts.Metrics,
		auth:     newAuthenticator(cfg.Auth),
		version:  version,
		started:  time.Now(),
		now:      time.Now,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.NewPerIPLimiter(ratelimit.PerIPConfig{
			Rate:           cfg.RateLimit.RequestsPerSecond,
			Burst:          cfg.RateLimit.Burst,
			TrustedProxies: cfg.RateLimit.TrustedProxies,
		})
	}

	s.handler = s.withMiddleware(s.routes())
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       cfg.Server.ReadTimeout.Std(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	return s, nil
}

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	if n := s.cfg.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("starting API server", "addr", ln.Addr().String(), "version", s.version)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.log.Info("stopping API server")
	return s.httpServer.Shutdown(ctx)
}
