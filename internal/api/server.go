package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mehedi/stockhook/internal/config"
	"github.com/mehedi/stockhook/internal/storage"
)

type Server struct {
	cfg     config.ServerConfig
	store   storage.Store
	emitter Emitter
	metrics bool
	router  *chi.Mux
	log     zerolog.Logger
	http    *http.Server
}

func NewServer(cfg config.ServerConfig, store storage.Store, emitter Emitter, metricsEnabled bool, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		emitter: emitter,
		metrics: metricsEnabled,
		log:     log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	epHandler := NewEndpointHandler(s.store)
	evHandler := NewEventHandler(s.emitter)
	dlvHandler := NewDeliveryHandler(s.store)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.AuthToken))

		// Producer-facing
		r.Post("/events", evHandler.Emit)

		// Endpoint registration & lifecycle (soft: no hard delete while
		// deliveries reference an endpoint)
		r.Post("/endpoints", epHandler.Create)
		r.Get("/endpoints", epHandler.List)
		r.Get("/endpoints/{id}", epHandler.Get)
		r.Patch("/endpoints/{id}/enable", epHandler.Enable)
		r.Patch("/endpoints/{id}/disable", epHandler.Disable)

		// Introspection
		r.Get("/endpoints/{id}/stats", epHandler.Stats)
		r.Get("/endpoints/{id}/deliveries", epHandler.Deliveries)
		r.Get("/deliveries/{id}", dlvHandler.Get)
	})

	return r
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
