package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerline/ledgerline/internal/billing/dashboard"
	"github.com/ledgerline/ledgerline/internal/billing/invoices"
	"github.com/ledgerline/ledgerline/internal/billing/quotations"
	"github.com/ledgerline/ledgerline/internal/billing/recurring"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InvoicesHandler   *invoices.Handler
	QuotationsHandler *quotations.Handler
	RecurringHandler  *recurring.Handler
	DashboardHandler  *dashboard.Handler
	ActivityHandler   *shared.ActivityHandler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router. Billing routes live under /api/v1
// and require the owner identity header; probes and metrics do not.
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(shared.OwnerMiddleware)
		params.InvoicesHandler.MountRoutes(r)
		params.QuotationsHandler.MountRoutes(r)
		params.RecurringHandler.MountRoutes(r)
		if params.DashboardHandler != nil {
			params.DashboardHandler.MountRoutes(r)
		}
		if params.ActivityHandler != nil {
			params.ActivityHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
