// Package server provides an importable static-file HTTP server for the
// browser test page. Every response carries the cross-origin isolation
// headers the page needs for SharedArrayBuffer-backed threads.
// This allows E2E tests to programmatically start/stop the server without running main().
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8000" or ":0" for random port)
	Root         string        // Directory served at "/"
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout

	// Watch logs changes under Root and disables response caching so a
	// reloaded page picks up rebuilt artifacts.
	Watch bool
	// MetricsPath exposes Prometheus metrics at this path when non-empty.
	MetricsPath string

	Logger *slog.Logger
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:         ":0",
		Root:         ".",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server serves a directory with cross-origin isolation headers.
type Server struct {
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
	addr       string
	mu         sync.Mutex
	running    bool
	serveErr   chan error

	cfg     Config
	logger  *slog.Logger
	metrics *metrics
	watcher *rootWatcher
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	fi, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("invalid root: %s is not a directory", cfg.Root)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
// A server stopped with Shutdown can be started again.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	if s.cfg.Watch {
		w, err := newRootWatcher(s.cfg.Root, defaultDebounce, s.logger, s.rootChanged)
		if err != nil {
			ln.Close()
			return "", fmt.Errorf("failed to watch %s: %w", s.cfg.Root, err)
		}
		w.start()
		s.watcher = w
	}

	// http.Server cannot serve again once shut down.
	hs := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.httpServer = hs
	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true
	s.serveErr = make(chan error, 1)

	go func(errc chan<- error) {
		defer close(errc)
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "error", err)
			errc <- err
		}
	}(s.serveErr)

	return s.addr, nil
}

// Wait blocks until the server stops serving. It returns nil after a
// graceful Shutdown and the serve error otherwise.
func (s *Server) Wait() error {
	s.mu.Lock()
	errc := s.serveErr
	s.mu.Unlock()
	if errc == nil {
		return nil
	}
	return <-errc
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	var werr error
	if s.watcher != nil {
		werr = s.watcher.stop()
		s.watcher = nil
	}
	return errors.Join(s.httpServer.Shutdown(ctx), werr)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.addr
}

func (s *Server) rootChanged(path string) {
	s.logger.Info("Artifact changed", "path", path)
	s.metrics.rootChanges.Inc()
}
