// Package statusserver exposes the monitor process's health and metrics
// surface over plain HTTP. Grounded on the teacher's rpc.Server.Start
// (internal/rpc/server.go): a net.Listen + http.ServeMux + http.Server
// triple, served from a background goroutine and torn down with
// Server.Shutdown.
package statusserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/metrics"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// HealthReporter reports whether the monitor considers itself healthy, for
// the §276 "return 200 if already running" idempotent start-check contract
// — narrowed here to a liveness probe, since the start/stop control surface
// itself is the out-of-scope external collaborator.
type HealthReporter interface {
	Healthy() bool
}

// Server serves /healthz and /metrics on one address.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	log        *logging.Logger
}

// New builds a status server backed by reg's Prometheus collectors and
// health's liveness check.
func New(reg *metrics.Registry, health HealthReporter) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if health == nil || health.Healthy() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy"))
	})

	return &Server{
		httpServer: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: logging.GetDefault().Component("statusserver"),
	}
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("status server error", "error", err)
		}
	}()
	s.log.Info("status server started", "addr", addr)
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
