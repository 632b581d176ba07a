package locations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
)

// Handler exposes location and link endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes relative to /locations.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/links", h.links)
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireAdmin)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/depots/{depotID}", h.link)
		r.Delete("/{id}/depots/{depotID}", h.unlink)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Kind: Kind(r.URL.Query().Get("kind")), Search: r.URL.Query().Get("search")}
	locs, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list locations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, locs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create location", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loc)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.fail(w, "update location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) links(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	links, err := h.service.Links(r.Context(), id)
	if err != nil {
		h.fail(w, "get links", err)
		return
	}
	httpx.JSON(w, http.StatusOK, links)
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	shopID, depotID, ok := linkParams(w, r)
	if !ok {
		return
	}
	if err := h.service.Link(r.Context(), shopID, depotID); err != nil {
		h.fail(w, "link locations", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unlink(w http.ResponseWriter, r *http.Request) {
	shopID, depotID, ok := linkParams(w, r)
	if !ok {
		return
	}
	if err := h.service.Unlink(r.Context(), shopID, depotID); err != nil {
		h.fail(w, "unlink locations", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func linkParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	shopID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	depotID, err := httpx.IDParam(r, "depotID")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	return shopID, depotID, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
