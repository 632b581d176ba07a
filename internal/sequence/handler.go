package sequence

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
)

// Handler exposes number allocation over HTTP.
type Handler struct {
	logger    *slog.Logger
	generator *Generator
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, generator *Generator) *Handler {
	return &Handler{logger: logger, generator: generator}
}

// MountRoutes registers routes relative to /sequences.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httpx.RequireAdmin).Post("/{docType}/{year}/next", h.next)
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httpx.RespondError(w, ErrInvalidYear)
		return
	}
	docType := DocType(chi.URLParam(r, "docType"))
	number, err := h.generator.NextNumber(r.Context(), docType, year)
	if err != nil {
		h.logger.Error("next number failed", slog.String("doc_type", string(docType)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"number": number})
}
