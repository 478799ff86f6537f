package targets

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

// Handler exposes sales target endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs the targets handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers target routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermTargetsView, rbac.PermTargetsManage))
		r.Get("/", h.handleList)
		r.Get("/period", h.handlePeriod)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermTargetsManage))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDeactivate)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input CreateTargetInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if input.Type, err = shared.ParsePeriodType(string(input.Type)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	t, err := h.service.CreateTarget(r.Context(), input)
	if err != nil {
		h.fail(w, "create target", err)
		return
	}
	httpx.OK(w, http.StatusCreated, t)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
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
	var input UpdateTargetInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = actor.UserID
	t, err := h.service.UpdateTarget(r.Context(), id, input)
	if err != nil {
		h.fail(w, "update target", err)
		return
	}
	httpx.OK(w, http.StatusOK, t)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
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
	t, err := h.service.DeactivateTarget(r.Context(), id, actor.UserID)
	if err != nil {
		h.fail(w, "deactivate target", err)
		return
	}
	httpx.OK(w, http.StatusOK, t)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{ActiveOnly: q.Get("active") != "false"}
	if raw := q.Get("type"); raw != "" {
		t, err := shared.ParsePeriodType(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Type = t
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.ValidationError("user_id must be numeric"))
			return
		}
		filter.UserID = id
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.Role == shared.RoleSales {
		filter.UserID = actor.UserID
	}
	list, err := h.service.ListTargets(r.Context(), filter)
	if err != nil {
		h.fail(w, "list targets", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	t, err := shared.ParsePeriodType(r.URL.Query().Get("type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	info, err := h.service.GenerateTargetPeriod(t)
	if err != nil {
		h.fail(w, "generate period", err)
		return
	}
	httpx.OK(w, http.StatusOK, info)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("targets "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
