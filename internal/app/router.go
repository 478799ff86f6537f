package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	analytichttp "github.com/niaga-erp/niaga/internal/analytics/http"
	"github.com/niaga-erp/niaga/internal/ar"
	audithttp "github.com/niaga-erp/niaga/internal/audit/http"
	"github.com/niaga-erp/niaga/internal/delivery"
	"github.com/niaga-erp/niaga/internal/expenses"
	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/observability"
	"github.com/niaga-erp/niaga/internal/platform/httpx"
	"github.com/niaga-erp/niaga/internal/procurement"
	"github.com/niaga-erp/niaga/internal/rbac"
	"github.com/niaga-erp/niaga/internal/sales"
	"github.com/niaga-erp/niaga/internal/targets"
	"github.com/niaga-erp/niaga/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	RBACMiddleware     rbac.Middleware
	SalesHandler       *sales.Handler
	ARHandler          *ar.Handler
	ExpensesHandler    *expenses.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	DeliveryHandler    *delivery.Handler
	TargetsHandler     *targets.Handler
	AnalyticsHandler   *analytichttp.Handler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewHandlers builds every HTTP handler from the wired services.
func NewHandlers(params RouterParams, svc *Services) RouterParams {
	m := params.RBACMiddleware
	params.SalesHandler = sales.NewHandler(params.Logger, svc.Sales, m)
	params.ARHandler = ar.NewHandler(params.Logger, svc.Receivables, m)
	params.ExpensesHandler = expenses.NewHandler(params.Logger, svc.Expenses, m)
	params.InventoryHandler = inventory.NewHandler(params.Logger, svc.Inventory, m)
	params.ProcurementHandler = procurement.NewHandler(params.Logger, svc.Procurement, m)
	params.DeliveryHandler = delivery.NewHandler(params.Logger, svc.Delivery, m)
	params.TargetsHandler = targets.NewHandler(params.Logger, svc.Targets, m)
	params.AnalyticsHandler = analytichttp.NewHandler(params.Logger, svc.Analytics, m)
	params.AuditHandler = audithttp.NewHandler(params.Logger, svc.Audit, m)
	return params
}

// NewRouter constructs the chi.Router with Niaga defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		RBAC:    params.RBACMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.SalesHandler != nil {
		r.Route("/sales", params.SalesHandler.MountRoutes)
	}
	r.Route("/finance", func(r chi.Router) {
		if params.ARHandler != nil {
			params.ARHandler.MountRoutes(r)
		}
		if params.ExpensesHandler != nil {
			params.ExpensesHandler.MountRoutes(r)
		}
	})
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.ProcurementHandler != nil {
		r.Route("/procurement", params.ProcurementHandler.MountRoutes)
	}
	if params.DeliveryHandler != nil {
		r.Route("/delivery", params.DeliveryHandler.MountRoutes)
	}
	if params.TargetsHandler != nil {
		r.Route("/targets", params.TargetsHandler.MountRoutes)
	}
	if params.AnalyticsHandler != nil {
		r.Route("/analytics", params.AnalyticsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
