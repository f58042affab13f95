package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/pagestate-service/internal/delivery/http/handler"
	"github.com/user/pagestate-service/internal/delivery/http/middleware"
	"github.com/user/pagestate-service/pkg/metrics"
	"go.uber.org/zap"
)

// New builds the admin API. metricsHandler serves /metrics; nil falls back
// to the default Prometheus registry.
func New(h *handler.Handler, m *metrics.Metrics, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api/hosts", func(r chi.Router) {
		r.Get("/blocks", h.HandleListBlocks)
		r.Route("/{hostname}/block", func(r chi.Router) {
			r.Get("/", h.HandleGetBlock)
			r.Post("/", h.HandleBlockHost)
			r.Delete("/", h.HandleUnblockHost)
		})
	})

	r.Route("/api/accounts/{userID}/block-events", func(r chi.Router) {
		r.Get("/", h.HandleListAccountBlocks)
		r.Post("/", h.HandleReportAccountBlock)
	})

	return r
}
