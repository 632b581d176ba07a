package documents

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
	"github.com/odyssey-erp/stockflow/internal/sequence"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Handler exposes document endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes relative to /documents.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.Actor, _ = shared.ActorFromContext(r.Context())
	input.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	doc, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Warn("create document failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.CanAct(doc.LocationID) {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	locationID, err := httpx.QueryInt64(r, "location_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := httpx.QueryInt64(r, "year")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := httpx.QueryInt64(r, "limit")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.IsAdmin() && (locationID == 0 || !actor.CanAct(locationID)) {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	docs, err := h.service.List(r.Context(), ListFilter{
		DocType:    sequence.DocType(r.URL.Query().Get("type")),
		Year:       int(year),
		LocationID: locationID,
		Limit:      int(limit),
	})
	if err != nil {
		h.logger.Error("list documents failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}
