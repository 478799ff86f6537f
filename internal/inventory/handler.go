package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/niaga-erp/niaga/internal/platform/httpx"
	"github.com/niaga-erp/niaga/internal/rbac"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryView))
		r.Get("/products/{id}", h.handleGetProduct)
		r.Get("/products/{id}/movements", h.handleListMovements)
		r.Get("/low-stock", h.handleLowStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInventoryEdit))
		r.Post("/production", h.handleRecordProduction)
		r.Delete("/production/{id}", h.handleDeleteProduction)
		r.Post("/adjustments", h.handleAdjustment)
		r.Post("/opname", h.handleOpname)
	})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), id, limit)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.OK(w, http.StatusOK, movements)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.OK(w, http.StatusOK, products)
}

func (h *Handler) handleRecordProduction(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ProductionInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	if input.RequestKey == "" {
		input.RequestKey = r.Header.Get("Idempotency-Key")
	}
	log, err := h.service.RecordProduction(r.Context(), input)
	if err != nil {
		h.fail(w, "record production", err)
		return
	}
	httpx.OK(w, http.StatusCreated, log)
}

func (h *Handler) handleDeleteProduction(w http.ResponseWriter, r *http.Request) {
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
	m, err := h.service.DeleteProduction(r.Context(), id, actor.UserID)
	if err != nil {
		h.fail(w, "delete production", err)
		return
	}
	httpx.OK(w, http.StatusOK, m)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input AdjustmentInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	m, err := h.service.AdjustStock(r.Context(), input)
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.OK(w, http.StatusCreated, m)
}

func (h *Handler) handleOpname(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input OpnameInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	opname, err := h.service.PostStockOpname(r.Context(), input)
	if err != nil {
		h.fail(w, "stock opname", err)
		return
	}
	httpx.OK(w, http.StatusCreated, opname)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("inventory "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
