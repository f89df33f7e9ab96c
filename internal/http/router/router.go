package router

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/http/handlers"
	"github.com/Freeeeeet/stable_booking/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Config struct {
	Handler     *handlers.Handler
	Idempotency *middleware.Idempotency // nil disables Idempotency-Key handling
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
	Timeout     time.Duration
}

// New builds the HTTP handler tree.
func New(cfg Config) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	var bookingMiddleware []func(http.Handler) http.Handler
	if cfg.Idempotency != nil {
		bookingMiddleware = append(bookingMiddleware, cfg.Idempotency.Middleware)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(chimw.Timeout(cfg.Timeout))
		cfg.Handler.Register(api, bookingMiddleware...)
	})

	return r
}
