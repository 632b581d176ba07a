package items

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Handler exposes item endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountLocationRoutes registers the per-location routes relative to /locations.
func (h *Handler) MountLocationRoutes(r chi.Router) {
	r.Get("/{id}/items", h.list)
	r.Post("/{id}/items", h.create)
	r.Get("/{id}/items/low-stock", h.lowStock)
}

// MountRoutes registers routes relative to /items.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.location(w, r)
	if !ok {
		return
	}
	limit, err := httpx.QueryInt64(r, "limit")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), ListFilter{
		LocationID: locationID,
		Search:     r.URL.Query().Get("search"),
		Limit:      int(limit),
	})
	if err != nil {
		h.fail(w, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.location(w, r)
	if !ok {
		return
	}
	list, err := h.service.LowStock(r.Context(), locationID)
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.location(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.LocationID = locationID
	it, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, it)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	it, ok := h.item(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, it)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	it, ok := h.item(w, r)
	if !ok {
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), it.ID, input)
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	it, ok := h.item(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), it.ID); err != nil {
		h.fail(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// location parses the location id and checks the actor may act on it.
func (h *Handler) location(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, false
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.CanAct(id) {
		httpx.RespondError(w, shared.ErrForbidden)
		return 0, false
	}
	return id, true
}

// item loads the item named in the path and checks the actor may act on its location.
func (h *Handler) item(w http.ResponseWriter, r *http.Request) (Item, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return Item{}, false
	}
	it, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get item", err)
		return Item{}, false
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.CanAct(it.LocationID) {
		httpx.RespondError(w, shared.ErrForbidden)
		return Item{}, false
	}
	return it, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
