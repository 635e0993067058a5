// Package observability hosts the process-level monitoring surface:
// Prometheus scrape endpoint plus liveness and readiness probes. It is
// deliberately separate from the session API so monitoring keeps
// answering even when a room session is wedged.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server serves the monitoring endpoints on their own listener.
type Server struct {
	server *http.Server
	addr   string
}

// NewServer builds the monitoring server on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	// Process health, independent of the session API
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("Starting monitoring server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Monitoring server error")
		}
	}()
}

// Shutdown drains the monitoring listener.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down monitoring server")
	return s.server.Shutdown(ctx)
}
