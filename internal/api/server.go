// Package api serves the token-exchange proxy, the browser OAuth callback
// and JSON and PDF endpoints over the task service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"asanapdf/internal/auth"
	"asanapdf/internal/logger"
	"asanapdf/internal/render"
	"asanapdf/internal/service"
)

// ServiceFactory creates a Service authenticated with token.
type ServiceFactory func(ctx context.Context, token string) (service.Service, error)

// Options configures a Server.
type Options struct {
	Settings     auth.Settings
	ClientSecret string

	// Exchanger overrides the direct OAuth exchanger built from Settings
	// and ClientSecret.
	Exchanger auth.Exchanger

	Signer   *auth.StateSigner
	Services ServiceFactory

	Backend     render.Backend
	BannerTitle string

	Logger *slog.Logger
	Now    func() time.Time
}

// Server holds the handlers' dependencies. It keeps no per-user state.
type Server struct {
	settings    auth.Settings
	exchanger   auth.Exchanger
	exchangeErr error
	signer      *auth.StateSigner
	services    ServiceFactory
	backend     render.Backend
	bannerTitle string
	validate    *validator.Validate
	log         *slog.Logger
	now         func() time.Time
}

// New creates a Server. A missing client id or secret is not fatal here:
// the auth endpoints answer 500 until it is configured.
func New(opts Options) *Server {
	s := &Server{
		settings:    opts.Settings,
		exchanger:   opts.Exchanger,
		signer:      opts.Signer,
		services:    opts.Services,
		backend:     opts.Backend,
		bannerTitle: opts.BannerTitle,
		validate:    validator.New(),
		log:         logger.OrDefault(opts.Logger),
		now:         opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.exchanger == nil {
		x, err := auth.NewOAuthExchanger(opts.Settings, opts.ClientSecret)
		if err != nil {
			s.exchangeErr = err
		} else {
			s.exchanger = x
		}
	}
	if s.backend == nil {
		s.backend = &render.PDFBackend{Title: s.bannerTitle, Now: s.now}
	}
	return s
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceMiddleware)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.log.Error("failed to write health check response", "error", err)
		}
	})

	r.Get("/auth/login", s.handleLogin)
	r.Get("/auth/callback", s.handleCallback)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/asana", s.handleExchange)

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)
			r.Get("/projects", s.handleProjects)
			r.Get("/projects/{projectID}/tasks", s.handleTasks)
			r.Post("/export", s.handleExport)
		})
	})

	return r
}
