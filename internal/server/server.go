package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/bridge"
	"github.com/muurk/tuyalocal/internal/discovery"
	"github.com/muurk/tuyalocal/internal/logging"
)

// DefaultInstanceName is the mDNS instance name used when none is configured
const DefaultInstanceName = "tuyalocal"

// shutdownTimeout bounds how long Shutdown waits for WebSocket clients
const shutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	ListenAddr string // e.g. ":8668"
	Advertise  bool   // register the bridge on mDNS
	Instance   string // mDNS instance name (defaults to "tuyalocal")
}

// Server exposes a hub over HTTP and WebSocket
type Server struct {
	config   *Config
	hub      *bridge.Hub
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	mdns       *zeroconf.Server

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// New creates a new Server instance
func New(config *Config, hub *bridge.Hub) *Server {
	s := &Server{
		config: config,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are LAN tools and dashboards served from other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		activeConns: make(map[string]*websocket.Conn),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Listen binds the listening socket without serving
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives, or serving
// fails, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	logging.Info("Starting tuyalocal bridge server",
		zap.String("addr", s.listener.Addr().String()),
		zap.Int("devices", len(s.hub.Entities())),
	)

	if s.config.Advertise {
		s.advertise()
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logging.Info("Context cancelled, stopping server...")
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) advertise() {
	port := s.listener.Addr().(*net.TCPAddr).Port
	instance := s.config.Instance
	if instance == "" {
		instance = DefaultInstanceName
	}

	mdns, err := discovery.Advertise(instance, port, len(s.hub.Entities()))
	if err != nil {
		// The bridge still works without advertisement
		logging.Warn("Failed to advertise bridge", zap.Error(err))
		return
	}
	s.mdns = mdns
	logging.Info("Bridge advertised on mDNS",
		zap.String("instance", instance),
		zap.String("service", discovery.BridgeServiceType),
		zap.Int("port", port),
	)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.mdns != nil {
		s.mdns.Shutdown()
		s.mdns = nil
	}

	// Stop accepting new connections; hijacked WebSocket connections are not tracked by http.Server
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		logging.Error("Error shutting down HTTP server", zap.Error(err))
	}

	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()

	// Wait for all client goroutines to finish
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of connected WebSocket clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(addr string, conn *websocket.Conn) {
	s.mu.Lock()
	s.activeConns[addr] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(addr string) {
	s.mu.Lock()
	delete(s.activeConns, addr)
	s.mu.Unlock()
}
