package sales

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/niaga-erp/niaga/internal/platform/httpx"
	"github.com/niaga-erp/niaga/internal/rbac"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Handler exposes order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermOrdersView))
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermOrdersCreate))
		r.Post("/orders", h.handleCreateOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermOrdersConfirm))
		r.Post("/orders/{id}/confirm", h.handleConfirmOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermOrdersManage, rbac.PermOrdersConfirm))
		r.Post("/orders/{id}/process", h.handleStartProcessing)
		r.Post("/orders/{id}/complete", h.handleCompleteOrder)
		r.Post("/orders/{id}/cancel", h.handleCancelOrder)
	})
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input CreateOrderInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// sales reps always own the orders they place
	if actor.Role == shared.RoleSales || input.SalesRepID == 0 {
		input.SalesRepID = actor.UserID
	}
	input.ActorID = actor.UserID
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.OK(w, http.StatusCreated, order)
}

func (h *Handler) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var input ConfirmOrderInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.ConfirmOrder(r.Context(), id, input, actor.UserID)
	if err != nil {
		h.fail(w, "confirm order", err)
		return
	}
	httpx.OK(w, http.StatusOK, order)
}

func (h *Handler) handleStartProcessing(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	order, err := h.service.StartProcessing(r.Context(), id, actor.UserID)
	if err != nil {
		h.fail(w, "start processing", err)
		return
	}
	httpx.OK(w, http.StatusOK, order)
}

func (h *Handler) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	order, err := h.service.CompleteOrder(r.Context(), id, actor.UserID)
	if err != nil {
		h.fail(w, "complete order", err)
		return
	}
	httpx.OK(w, http.StatusOK, order)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var input CancelOrderInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.CancelOrder(r.Context(), id, input.Reason, actor.UserID)
	if err != nil {
		h.fail(w, "cancel order", err)
		return
	}
	httpx.OK(w, http.StatusOK, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.OK(w, http.StatusOK, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: OrderStatus(q.Get("status"))}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if raw := q.Get("sales_rep_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.ValidationError("sales_rep_id must be numeric"))
			return
		}
		filter.SalesRepID = id
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.Role == shared.RoleSales {
		filter.SalesRepID = actor.UserID
	}
	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.OK(w, http.StatusOK, orders)
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
		h.logger.Error("sales "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
