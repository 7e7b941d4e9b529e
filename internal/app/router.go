package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kitarena/kitarena/internal/auth"
	"github.com/kitarena/kitarena/internal/catalog"
	"github.com/kitarena/kitarena/internal/ledger"
	"github.com/kitarena/kitarena/internal/observability"
	"github.com/kitarena/kitarena/internal/orders"
	"github.com/kitarena/kitarena/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Gate           auth.Gate
	AuthHandler    *auth.Handler
	CatalogHandler *catalog.Handler
	OrdersHandler  *orders.Handler
	LedgerHandler  *ledger.Handler
	JobsHandler    *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Gate.Resolve)
		params.AuthHandler.MountRoutes(r, params.Gate)
		params.CatalogHandler.MountRoutes(r, params.Gate)
		params.OrdersHandler.MountRoutes(r, params.Gate)
		params.LedgerHandler.MountRoutes(r, params.Gate)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
