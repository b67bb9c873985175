// Package api serves the relay's WebSocket endpoint and host diagnostics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rein/internal/config"
	"rein/internal/dispatch"
	"rein/internal/metrics"
	"rein/internal/network"
	"rein/internal/osutils"
	"rein/internal/protocol"
)

const shutdownTimeout = 5 * time.Second

// Submitter accepts decoded messages for ordered execution
type Submitter interface {
	Submit(ctx context.Context, msg protocol.Message, reply dispatch.Reply) error
}

// Options configures a Server. Zero values select defaults.
type Options struct {
	// Metrics may be nil
	Metrics *metrics.Recorder

	// Gatherer backs /metrics; defaults to prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// Firewall opens the listening port on Windows at startup
	Firewall bool
}

// Server accepts /ws connections and feeds their messages to one Submitter
type Server struct {
	configMgr *config.Manager
	submitter Submitter
	metrics   *metrics.Recorder
	gatherer  prometheus.Gatherer
	firewall  bool
	hub       *hub
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, submitter Submitter, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		configMgr: configMgr,
		submitter: submitter,
		metrics:   opts.Metrics,
		gatherer:  opts.Gatherer,
		firewall:  opts.Firewall,
	}
	s.hub = newHub(s)
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/ws", s.hub.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Start listens on the configured port and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	port := s.configMgr.Get().FrontendPort

	// 0.0.0.0 with tcp4 avoids IPv6-only binding on Windows
	addr := fmt.Sprintf("0.0.0.0:%d", port)

	log.Printf("--- Diagnostic: Network Interfaces ---")
	if ips, err := network.GetLocalIPs(); err == nil {
		for _, ip := range ips {
			log.Printf("  Found Local IPv4: %s", ip)
		}
	}
	log.Printf("--------------------------------------")

	if s.firewall && runtime.GOOS == "windows" {
		if err := osutils.EnsureFirewallRule(port); err != nil {
			log.Printf("API: Firewall rule not applied: %v", err)
		}
	}

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Printf("API: Listening on %s", addr)
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is cancelled, then closes every
// connection and shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		s.hub.closeAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("API: Shutting down")
	// hijacked websocket connections are not tracked by Shutdown
	s.hub.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// requestLogger logs every plain HTTP request
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": s.hub.count(),
	})
}
