package procurement

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/niaga-erp/niaga/internal/platform/httpx"
	"github.com/niaga-erp/niaga/internal/rbac"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

type confirmResponse struct {
	PurchaseOrder PurchaseOrder `json:"purchase_order"`
	StockCheck    StockCheck    `json:"stock_check"`
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermProcurementEdit, rbac.PermStockConfirm))
		r.Get("/purchase-orders", h.handleList)
		r.Get("/purchase-orders/{id}", h.handleGet)
		r.Get("/purchase-orders/{id}/stock-check", h.handleStockCheck)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermProcurementEdit))
		r.Post("/purchase-orders", h.handleCreate)
		r.Post("/purchase-orders/{id}/complete", h.handleComplete)
		r.Post("/purchase-orders/{id}/cancel", h.handleCancel)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermStockConfirm))
		r.Post("/purchase-orders/{id}/stock-confirmation", h.handleConfirmStock)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input CreatePOInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	po, err := h.service.CreatePurchaseOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create purchase order", err)
		return
	}
	httpx.OK(w, http.StatusCreated, po)
}

func (h *Handler) handleStockCheck(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	check, err := h.service.CheckStock(r.Context(), id)
	if err != nil {
		h.fail(w, "stock check", err)
		return
	}
	httpx.OK(w, http.StatusOK, check)
}

func (h *Handler) handleConfirmStock(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ConfirmStockInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	po, check, err := h.service.ConfirmPurchaseOrderStock(r.Context(), id, input)
	if err != nil {
		h.fail(w, "confirm stock", err)
		return
	}
	httpx.OK(w, http.StatusOK, confirmResponse{PurchaseOrder: po, StockCheck: check})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "complete purchase order", h.service.CompletePurchaseOrder)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "cancel purchase order", h.service.CancelPurchaseOrder)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, poID, actorID int64) (PurchaseOrder, error)) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := fn(r.Context(), id, actor.UserID)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get purchase order", err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: POStatus(q.Get("status")), StockStatus: StockStatus(q.Get("stock_status"))}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	pos, err := h.service.ListPurchaseOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, "list purchase orders", err)
		return
	}
	httpx.OK(w, http.StatusOK, pos)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("procurement "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
