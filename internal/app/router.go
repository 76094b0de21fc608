package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cemtrack/cemtrack/internal/admin"
	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/ledger"
	"github.com/cemtrack/cemtrack/internal/notify"
	"github.com/cemtrack/cemtrack/internal/reconcile"
	"github.com/cemtrack/cemtrack/internal/report"
	"github.com/cemtrack/cemtrack/internal/snapshot"
	"github.com/cemtrack/cemtrack/internal/unloading"
	"github.com/cemtrack/cemtrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	BillingHandler   *billing.Handler
	UnloadingHandler *unloading.Handler
	BalanceHandler   *balance.Handler
	LedgerHandler    *ledger.Handler
	ReconcileHandler *reconcile.Handler
	ReportHandler    *report.Handler
	SnapshotHandler  *snapshot.Handler
	NotifyHandler    *notify.Handler
	AdminHandler     *admin.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.BillingHandler.MountRoutes(r)
		params.UnloadingHandler.MountRoutes(r)
		params.BalanceHandler.MountRoutes(r)
		params.LedgerHandler.MountRoutes(r)
		params.ReconcileHandler.MountRoutes(r)
		params.ReportHandler.MountRoutes(r)
		params.SnapshotHandler.MountRoutes(r)
		params.NotifyHandler.MountRoutes(r)
		params.AdminHandler.MountRoutes(r)
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
