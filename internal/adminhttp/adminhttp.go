// Package adminhttp is the node's operational surface: health and
// metrics endpoints, plus a debug listing of locally-owned rooms. It
// is explicitly NOT the client matchmaking transport; this is the
// surface oncall and external proxies hit.
//
// Server lifecycle follows this module's usual shape: a mux wrapped
// in an http.Server with explicit timeouts, and a graceful shutdown
// on signal.
package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sablecluster/matchmaker/internal/matchmaker"
)

// Server is the admin HTTP surface for one node.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the admin surface bound to addr, registering
// /healthz, /metrics, and /debug/rooms.
func NewServer(addr string, mm *matchmaker.MatchMaker, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"processId": mm.ProcessID(),
		})
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/debug/rooms", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mm.LocalRooms())
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
// ErrServerClosed from a clean shutdown is swallowed.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
