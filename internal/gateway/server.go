// Package gateway serves the liveness endpoint that keeps hosting platforms
// from idling the bot, plus health and Prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/realmwatch/internal/status"
)

// SnapshotFunc returns the monitor's latest published state.
type SnapshotFunc func() status.Snapshot

// Config configures the liveness server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ServerName appears in the root response.
	ServerName string

	// Snapshot feeds /healthz. Nil reports an unknown state.
	Snapshot SnapshotFunc

	// Connected reports the chat gateway connection for /healthz. Nil omits it.
	Connected func() bool

	// Gatherer backs /metrics. Nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server is the liveness HTTP server.
type Server struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server. It does not listen until Start.
func NewServer(config Config) *Server {
	if config.ServerName == "" {
		config.ServerName = status.DefaultServerName
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		config: config,
		logger: config.Logger.With("component", "gateway"),
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.config.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/", s.handleRoot)

	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("liveness server already started")
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("starting liveness server", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or "" when not serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully, waiting at most five seconds.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "%s monitor is running.", s.config.ServerName)
}

type healthResponse struct {
	Status   string `json:"status"`
	Playable string `json:"playable"`
	Presence string `json:"presence,omitempty"`
	Role     string `json:"role,omitempty"`
	Discord  string `json:"discord,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Playable: status.Unknown.String()}
	if s.config.Snapshot != nil {
		snap := s.config.Snapshot()
		resp.Playable = snap.Playable.String()
		resp.Presence = snap.Presence
		resp.Role = snap.Role
	}
	if s.config.Connected != nil {
		resp.Discord = "disconnected"
		if s.config.Connected() {
			resp.Discord = "connected"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
