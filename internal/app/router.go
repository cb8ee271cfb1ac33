package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pressdesk/pressdesk/internal/inventory"
	"github.com/pressdesk/pressdesk/internal/jobledger"
	"github.com/pressdesk/pressdesk/internal/observability"
	"github.com/pressdesk/pressdesk/internal/reports"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InventoryHandler *inventory.Handler
	JobLedgerHandler *jobledger.Handler
	ReportsHandler   *reports.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with pressdesk defaults.
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
		r.Route("/materials", params.InventoryHandler.MountRoutes)
		r.Route("/jobs", params.JobLedgerHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	})

	return r
}
