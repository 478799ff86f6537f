package ar

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/niaga-erp/niaga/internal/platform/httpx"
	"github.com/niaga-erp/niaga/internal/rbac"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Handler manages receivables endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers receivables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	// View routes
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermFinanceView))
		r.Get("/invoices", h.listInvoices)
		r.Get("/invoices/{id}", h.getInvoice)
		r.Get("/invoices/{id}/payments", h.listPayments)
		r.Get("/receivables/aging", h.agingReport)
	})

	// Invoice workflow
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInvoicesManage))
		r.Post("/invoices", h.createInvoice)
		r.Post("/invoices/{id}/send", h.sendInvoice)
		r.Post("/invoices/{id}/cancel", h.cancelInvoice)
		r.Post("/invoices/repair", h.repairInvoices)
	})

	// Payments
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPaymentsRecord))
		r.Post("/invoices/{id}/payments", h.recordPayment)
		r.Delete("/payments/{id}", h.deletePayment)
	})

	// Warehouse preparation
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPreparation))
		r.Get("/preparation-queue", h.preparationQueue)
		r.Post("/invoices/{id}/preparation", h.confirmPreparation)
	})
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:        InvoiceStatus(q.Get("status")),
		PaymentStatus: PaymentStatus(q.Get("payment_status")),
	}
	if raw := q.Get("customer_id"); raw != "" {
		filter.CustomerID, _ = strconv.ParseInt(raw, 10, 64)
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	invoices, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.OK(w, http.StatusOK, invoices)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	httpx.OK(w, http.StatusOK, payments)
}

func (h *Handler) agingReport(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := shared.ParseDate(raw, time.Time{})
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		asOf = parsed
	}
	report, err := h.service.ReceivablesAging(r.Context(), asOf)
	if err != nil {
		h.fail(w, "aging report", err)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input CreateInvoiceInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	inv, err := h.service.CreateInvoiceFromOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.OK(w, http.StatusCreated, inv)
}

func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.SendInvoice(r.Context(), id, actor.UserID)
	if err != nil {
		h.fail(w, "send invoice", err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var input CancelInvoiceInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CancelInvoice(r.Context(), id, input.Reason, actor.UserID)
	if err != nil {
		h.fail(w, "cancel invoice", err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) repairInvoices(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.RepairInvoices(r.Context())
	if err != nil {
		h.fail(w, "repair invoices", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int{"repaired": count})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var input PaymentInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.InvoiceID = id
	input.ActorID = actor.UserID
	if input.RequestKey == "" {
		input.RequestKey = r.Header.Get("Idempotency-Key")
	}
	result, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.OK(w, http.StatusCreated, result)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.DeletePayment(r.Context(), id, actor.UserID)
	if err != nil {
		h.fail(w, "delete payment", err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) preparationQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.service.PreparationQueue(r.Context())
	if err != nil {
		h.fail(w, "preparation queue", err)
		return
	}
	httpx.OK(w, http.StatusOK, queue)
}

func (h *Handler) confirmPreparation(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var input PreparationInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.ConfirmPreparation(r.Context(), id, input, actor.UserID)
	if err != nil {
		h.fail(w, "confirm preparation", err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, bool) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, 0, false
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("ar "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
