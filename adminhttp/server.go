// Package adminhttp exposes the coordinator's operational HTTP surface:
// health and Prometheus metrics. It is deliberately the only HTTP surface
// in the system — job submission and status rendering are owned by the
// chat-bot request source, out of scope per spec §1.
package adminhttp

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relayforge/mediaforge/config"
	"github.com/relayforge/mediaforge/log"
)

// Server wraps the admin HTTP surface bound to a single address.
type Server struct {
	addr   string
	router *httprouter.Router
}

func New(addr string, reg *prometheus.Registry) *Server {
	s := &Server{addr: addr, router: httprouter.New()}
	s.router.GET("/healthz", s.healthz)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListenAndServe blocks serving the admin surface until the process exits
// or the listener fails.
func (s *Server) ListenAndServe() error {
	log.LogNoRequestID("starting admin HTTP surface", "version", config.Version, "addr", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}
