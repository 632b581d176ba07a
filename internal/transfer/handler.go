package transfer

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Handler exposes the transfer engine over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes relative to /transfers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/withdraw", h.withdraw)
	r.Get("/", h.history)
}

// MountLocationRoutes registers the per-shop routes relative to /locations.
func (h *Handler) MountLocationRoutes(r chi.Router) {
	r.Get("/{id}/candidates", h.candidates)
}

type withdrawRequest struct {
	OperationID string       `json:"operation_id"`
	Item        ItemSnapshot `json:"item"`
	Quantity    int          `json:"quantity"`
	DepotID     int64        `json:"depot_id"`
	ShopID      *int64       `json:"shop_id"`
	Mode        Mode         `json:"mode"`
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	rec, err := h.service.Withdraw(r.Context(), WithdrawInput{
		OperationID: req.OperationID,
		Item:        req.Item,
		Quantity:    req.Quantity,
		DepotID:     req.DepotID,
		ShopID:      req.ShopID,
		Mode:        req.Mode,
		Actor:       actor,
	})
	if err != nil {
		if KindOf(err) == KindUnavailable || KindOf(err) == "" {
			h.logger.Error("withdraw failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	var filter HistoryFilter
	for name, dst := range map[string]*int64{"depot_id": &filter.DepotID, "shop_id": &filter.ShopID, "item_id": &filter.ItemID} {
		v, err := httpx.QueryInt64(r, name)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		*dst = v
	}
	limit, err := httpx.QueryInt64(r, "limit")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Limit = int(limit)

	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.IsAdmin() {
		scoped := (filter.DepotID != 0 && actor.CanAct(filter.DepotID)) ||
			(filter.ShopID != 0 && actor.CanAct(filter.ShopID))
		if !scoped {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
	}

	records, err := h.service.History(r.Context(), filter)
	if err != nil {
		h.logger.Error("transfer history failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) candidates(w http.ResponseWriter, r *http.Request) {
	shopID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.CanAct(shopID) {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	list, err := h.service.Candidates(r.Context(), shopID)
	if err != nil {
		h.logger.Error("withdrawal candidates failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
