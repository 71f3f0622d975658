// Package http assembles the API router: middleware chain, public catalog
// and auth routes, bearer-authenticated storefront routes, and admin-token
// operational routes.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stagepass/internal/platform/metrics"
	"stagepass/internal/platform/middleware"
)

const requestTimeout = 30 * time.Second

// Registrar mounts a handler's routes on a router group.
type Registrar interface {
	Register(r chi.Router)
}

// Handlers collects the domain handlers the router mounts. Nil entries are
// skipped so tests can assemble partial routers.
type Handlers struct {
	AuthPublic    func(r chi.Router)
	AuthProtected func(r chi.Router)
	Events        Registrar
	EventsAdmin   func(r chi.Router)
	Registrations Registrar
	Tickets       Registrar
	TicketsAdmin  func(r chi.Router)
	Draws         Registrar
	IdentityAdmin func(r chi.Router)
}

// Options carries the router's cross-cutting dependencies.
type Options struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Auth       func(http.Handler) http.Handler
	AdminToken func(http.Handler) http.Handler
}

// NewRouter builds the full API surface.
func NewRouter(h Handlers, opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Latency(opts.Metrics))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public: account creation, login, and the concert catalog.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		if h.AuthPublic != nil {
			h.AuthPublic(r)
		}
		if h.Events != nil {
			h.Events.Register(r)
		}
	})

	// Storefront: everything scoped to the authenticated fan.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(opts.Auth)
		if h.AuthProtected != nil {
			h.AuthProtected(r)
		}
		mount(r, h.Registrations)
		mount(r, h.Tickets)
	})

	// Operations: draw trigger, event creation, gate check-in and identity
	// verification, guarded by the shared admin token.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(opts.AdminToken)
		if h.EventsAdmin != nil {
			h.EventsAdmin(r)
		}
		if h.TicketsAdmin != nil {
			h.TicketsAdmin(r)
		}
		if h.IdentityAdmin != nil {
			h.IdentityAdmin(r)
		}
		mount(r, h.Draws)
	})

	return r
}

func mount(r chi.Router, reg Registrar) {
	if reg != nil {
		reg.Register(r)
	}
}
