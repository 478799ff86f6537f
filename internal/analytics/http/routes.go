package analytichttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/niaga-erp/niaga/internal/rbac"
	"github.com/niaga-erp/niaga/internal/shared"
)

// MountRoutes registers analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermAnalyticsView))
		r.Get("/targets", h.handleTargets)
		r.Get("/targets/company", h.handleCompanyTargets)
		r.Get("/costs", h.handleCosts)
		r.Get("/dashboard", h.handleDashboard)
		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Get("/revenue", h.handleRevenue)
			r.Get("/profitability", h.handleProfitability)
			r.Get("/receivables/export.csv", h.handleAgingCSV)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(actor.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
