package audithttp

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/niaga-erp/niaga/internal/audit"
	"github.com/niaga-erp/niaga/internal/platform/httpx"
	"github.com/niaga-erp/niaga/internal/rbac"
	"github.com/niaga-erp/niaga/internal/shared"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler menangani permintaan audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TimelineService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:  logger,
		service: service,
		rbac:    rbac,
		now:     time.Now,
	}
}

// WithNow mengganti sumber waktu, dipakai oleh test.
func (h *Handler) WithNow(now func() time.Time) *Handler {
	h.now = now
	return h
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.fail(w, "load audit timeline", err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit timeline", err)
		return
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, rows); err != nil {
		h.fail(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters membaca query string. Tanggal "to" inklusif.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	to, err := shared.ParseDate(q.Get("to"), h.now().UTC())
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	from, err := shared.ParseDate(q.Get("from"), to.Add(-defaultDateRange))
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if from.After(to) {
		return audit.TimelineFilters{}, shared.ValidationError("from must not be after to")
	}
	if to.Sub(from) > maxDateRange {
		return audit.TimelineFilters{}, shared.ValidationError("date range must not exceed 90 days")
	}

	filters := audit.TimelineFilters{
		From:     from,
		To:       to.AddDate(0, 0, 1),
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   strings.ToUpper(strings.TrimSpace(q.Get("action"))),
	}
	if filters.ActorID, err = positiveInt(q.Get("actor_id"), "actor_id"); err != nil {
		return audit.TimelineFilters{}, err
	}
	page, err := positiveInt(q.Get("page"), "page")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	pageSize, err := positiveInt(q.Get("page_size"), "page_size")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	filters.Page, filters.PageSize = int(page), int(pageSize)
	return filters, nil
}

func positiveInt(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, shared.ValidationError("%s must be a positive integer", field)
	}
	return v, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("audit "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
