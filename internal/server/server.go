package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/manager"
)

const (
	// DefaultListen is the default bridge address
	DefaultListen = ":8080"

	// DefaultEventBuffer is the per-client event queue length
	DefaultEventBuffer = 64

	shutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Listen string

	// Nicknames resolves a serial to a user nickname. Optional.
	Nicknames func(serial string) string

	// EventBuffer is the per-client event queue length. Events beyond it
	// are dropped for that client.
	EventBuffer int
}

// Server bridges a manager's probe snapshots to HTTP and websocket clients
type Server struct {
	config   Config
	manager  *manager.Manager
	upgrader websocket.Upgrader
	http     *http.Server
	log      *zap.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a server for m
func New(cfg Config, m *manager.Manager) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}

	s := &Server{
		config:  cfg,
		manager: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     logging.Named("server"),
		clients: make(map[*client]struct{}),
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start listens on the configured address and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("Bridge listening", zap.String("addr", ln.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting requests and closes every websocket client
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down bridge")

	err := s.http.Shutdown(ctx)

	// Hijacked websocket connections are not tracked by http.Server
	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All connections closed gracefully")
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// GetActiveConnections returns the number of connected websocket clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) track(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}
