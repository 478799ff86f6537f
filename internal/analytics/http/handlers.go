// Package analytichttp serves analytics reports as JSON or CSV.
package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/niaga-erp/niaga/internal/analytics"
	"github.com/niaga-erp/niaga/internal/analytics/export"
	"github.com/niaga-erp/niaga/internal/platform/httpx"
	"github.com/niaga-erp/niaga/internal/rbac"
	"github.com/niaga-erp/niaga/internal/shared"
)

const requestTimeout = 2 * time.Second

// AnalyticsService defines the report contract used by the handler.
type AnalyticsService interface {
	GetRevenueOverTime(ctx context.Context, start, end time.Time, groupBy analytics.GroupBy) ([]analytics.RevenuePoint, error)
	GetTargetsForChart(ctx context.Context, userID int64, t shared.PeriodType) ([]analytics.TargetPoint, error)
	GetCompanyTargetsForChart(ctx context.Context, t shared.PeriodType) ([]analytics.CompanyTargetPoint, error)
	GetProfitability(ctx context.Context, r shared.TimeRange) (analytics.Profitability, error)
	GetCostBreakdown(ctx context.Context, r shared.TimeRange) (analytics.CostBreakdown, error)
	GetDashboard(ctx context.Context, r shared.TimeRange) (analytics.Dashboard, error)
}

// Handler coordinates HTTP requests for analytics reports.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	rbac    rbac.Middleware
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := h.now()
	end, err := shared.ParseDate(q.Get("end"), now)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := shared.ParseDate(q.Get("start"), end.AddDate(0, -1, 1))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groupBy := analytics.GroupBy(strings.ToLower(q.Get("group_by")))
	if groupBy == "" {
		groupBy = analytics.GroupByDay
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	points, err := h.service.GetRevenueOverTime(ctx, start, end, groupBy)
	if err != nil {
		h.fail(w, "revenue", err)
		return
	}
	if wantsCSV(r) {
		filename := fmt.Sprintf("revenue-%s-%s.csv", start.Format("20060102"), end.Format("20060102"))
		h.writeCSV(w, filename, func(buf *bytes.Buffer) error { return export.WriteRevenueCSV(buf, points) })
		return
	}
	httpx.OK(w, http.StatusOK, points)
}

func (h *Handler) handleTargets(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := shared.ParsePeriodType(r.URL.Query().Get("type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID := actor.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" && actor.Role != shared.RoleSales {
		if userID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			httpx.RespondError(w, shared.ValidationError("user_id must be numeric"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	points, err := h.service.GetTargetsForChart(ctx, userID, t)
	if err != nil {
		h.fail(w, "targets", err)
		return
	}
	httpx.OK(w, http.StatusOK, points)
}

func (h *Handler) handleCompanyTargets(w http.ResponseWriter, r *http.Request) {
	t, err := shared.ParsePeriodType(r.URL.Query().Get("type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	points, err := h.service.GetCompanyTargetsForChart(ctx, t)
	if err != nil {
		h.fail(w, "company targets", err)
		return
	}
	httpx.OK(w, http.StatusOK, points)
}

func (h *Handler) handleProfitability(w http.ResponseWriter, r *http.Request) {
	tr, err := shared.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	p, err := h.service.GetProfitability(ctx, tr)
	if err != nil {
		h.fail(w, "profitability", err)
		return
	}
	if wantsCSV(r) {
		filename := fmt.Sprintf("profitability-%s-%s.csv", tr, p.Window.Start.Format("20060102"))
		h.writeCSV(w, filename, func(buf *bytes.Buffer) error { return export.WriteProfitabilityCSV(buf, p) })
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) handleCosts(w http.ResponseWriter, r *http.Request) {
	tr, err := shared.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	costs, err := h.service.GetCostBreakdown(ctx, tr)
	if err != nil {
		h.fail(w, "costs", err)
		return
	}
	httpx.OK(w, http.StatusOK, costs)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tr, err := shared.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	d, err := h.service.GetDashboard(ctx, tr)
	if err != nil {
		h.fail(w, "dashboard", err)
		return
	}
	httpx.OK(w, http.StatusOK, d)
}

func (h *Handler) handleAgingCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	d, err := h.service.GetDashboard(ctx, shared.RangeMonth)
	if err != nil {
		h.fail(w, "aging export", err)
		return
	}
	filename := fmt.Sprintf("receivables-aging-%s.csv", d.Receivables.AsOf.Format("20060102"))
	h.writeCSV(w, filename, func(buf *bytes.Buffer) error { return export.WriteAgingCSV(buf, d.Receivables) })
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, render func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.csvPool.Put(buf)
	if err := render(buf); err != nil {
		h.fail(w, "render csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("analytics "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
