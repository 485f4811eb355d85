package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/tracestream/internal/sim"
	"github.com/vango-dev/tracestream/pkg/middleware"
)

// streamerState is the part of *server.Server the status endpoint reads.
type streamerState interface {
	IsListening() bool
	GetPort() uint16
	IsConnected() bool
}

// hostState is the part of *sim.Host the status endpoint reads.
type hostState interface {
	Status() sim.Status
}

type streamerStatus struct {
	Listening bool   `json:"listening"`
	Port      uint16 `json:"port,omitempty"`
	Connected bool   `json:"connected"`
}

type statusResponse struct {
	Version  string         `json:"version"`
	Streamer streamerStatus `json:"streamer"`
	Emulator sim.Status     `json:"emulator"`
}

// newStatusRouter serves /healthz, /status and /metrics. Request metrics are
// registered with reg; /metrics exposes gatherer.
func newStatusRouter(srv streamerState, host hostState, reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
	r.Use(middleware.OpenTelemetry(middleware.WithFilter(func(r *http.Request) bool {
		return r.URL.Path != "/healthz"
	})))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !srv.IsListening() {
			http.Error(w, "not listening", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Version: version,
			Streamer: streamerStatus{
				Listening: srv.IsListening(),
				Port:      srv.GetPort(),
				Connected: srv.IsConnected(),
			},
			Emulator: host.Status(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
