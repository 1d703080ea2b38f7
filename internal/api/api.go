// Package api implements the operator and dashboard HTTP surface: manual
// overrides, resets, duration/density updates, the sync bootstrap read,
// the WebSocket subscribe endpoint, and the thin admin CRUD.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/signalgrid/controlplane/internal/broadcast"
	"github.com/signalgrid/controlplane/internal/engine"
	"github.com/signalgrid/controlplane/internal/metrics"
	"github.com/signalgrid/controlplane/internal/store"
)

// AdminStore is the subset of *store.Store the admin CRUD handlers need.
type AdminStore interface {
	CreateCity(ctx context.Context, name, code string) (store.City, error)
	CreateArea(ctx context.Context, cityID uuid.UUID, name, code string) (store.TrafficArea, error)
	CreateIntersection(ctx context.Context, areaID uuid.UUID, name, code, location string) (store.Intersection, error)
	GetIntersection(ctx context.Context, id uuid.UUID) (store.Intersection, error)
}

// SignalStore is the subset of *store.Store the density/duration handlers
// and the sync bootstrap read need.
type SignalStore interface {
	Signal(ctx context.Context, signalID uuid.UUID) (engine.Signal, error)
	IntersectionSignals(ctx context.Context, intersectionID uuid.UUID) ([]engine.Signal, error)
	AllSignals(ctx context.Context) ([]engine.Signal, error)
	SetDuration(ctx context.Context, signalID uuid.UUID, durationSeconds int) error
	SetDensity(ctx context.Context, signalID uuid.UUID, density int) error
}

// PhaseCache is the subset of *cache.Cache the sync bootstrap read needs.
type PhaseCache interface {
	SignalState(ctx context.Context, signalID uuid.UUID) (engine.SignalState, bool)
}

// API wires the HTTP surface to the engine's Override/Reset handlers, the
// Signal Store, the Phase Cache, and the Broadcast Bus.
type API struct {
	log *slog.Logger

	override *engine.OverrideHandler
	reset    *engine.ResetHandler
	store    SignalStore
	admin    AdminStore
	cache    PhaseCache
	bus      *broadcast.Bus

	router chi.Router
}

// Config configures an API.
type Config struct {
	Logger      *slog.Logger
	Override    *engine.OverrideHandler
	Reset       *engine.ResetHandler
	Store       SignalStore
	Admin       AdminStore
	Cache       PhaseCache
	Bus         *broadcast.Bus
	CORSOrigins []string
}

// New builds the chi router and wraps it in an API.
func New(cfg Config) *API {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &API{
		log:      cfg.Logger,
		override: cfg.Override,
		reset:    cfg.Reset,
		store:    cfg.Store,
		admin:    cfg.Admin,
		cache:    cfg.Cache,
		bus:      cfg.Bus,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
			origins = strings.Split(raw, ",")
		} else {
			origins = []string{"*"}
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/cities", a.createCity)
		r.Post("/cities/{city_id}/areas", a.createArea)
		r.Post("/intersections", a.createIntersection)
		r.Get("/intersections/{id}", a.getIntersection)
		r.Post("/traffic-lights/{light_id}/manual", a.applyManual)
		r.Delete("/traffic-lights/{light_id}/manual", a.clearManual)
		r.Put("/traffic-lights/{light_id}/duration", a.setDuration)
	})

	r.Post("/intersections/{intersection_id}/reset", a.resetIntersection)
	r.Post("/frontend/simulate/{light_id}/density", a.simulateDensity)
	r.Get("/frontend/sync", a.sync)
	r.Get("/ws", a.bus.ServeWS)

	a.router = r
	return a
}

// Handler returns the root http.Handler for the API.
func (a *API) Handler() http.Handler { return a.router }
