package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tallerpro/tallerpro/internal/alerts"
	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/cashbox"
	"github.com/tallerpro/tallerpro/internal/inventory"
	"github.com/tallerpro/tallerpro/internal/jobs"
	"github.com/tallerpro/tallerpro/internal/locations"
	"github.com/tallerpro/tallerpro/internal/observability"
	"github.com/tallerpro/tallerpro/internal/parts"
	"github.com/tallerpro/tallerpro/internal/payables"
	"github.com/tallerpro/tallerpro/internal/purchasing"
	"github.com/tallerpro/tallerpro/internal/settings"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	LocationsHandler  *locations.Handler
	PartsHandler      *parts.Handler
	InventoryHandler  *inventory.Handler
	AlertsHandler     *alerts.Handler
	PurchasingHandler *purchasing.Handler
	PayablesHandler   *payables.Handler
	CashboxHandler    *cashbox.Handler
	SettingsHandler   *settings.Handler
	AuditHandler      *audit.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
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

	r.Route("/api/v1", func(api chi.Router) {
		if params.LocationsHandler != nil {
			params.LocationsHandler.MountRoutes(api)
		}
		if params.PartsHandler != nil {
			params.PartsHandler.MountRoutes(api)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(api)
		}
		if params.AlertsHandler != nil {
			params.AlertsHandler.MountRoutes(api)
		}
		if params.PurchasingHandler != nil {
			params.PurchasingHandler.MountRoutes(api)
		}
		if params.PayablesHandler != nil {
			params.PayablesHandler.MountRoutes(api)
		}
		if params.CashboxHandler != nil {
			params.CashboxHandler.MountRoutes(api)
		}
		if params.SettingsHandler != nil {
			params.SettingsHandler.MountRoutes(api)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(api)
		}
		if params.JobsHandler != nil {
			api.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
