package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockflow/internal/items"
	"github.com/odyssey-erp/stockflow/internal/platform/db"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

const idempotencyModule = "transfer"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByOperationID(ctx context.Context, operationID string) (Record, error)
	History(ctx context.Context, filter HistoryFilter) ([]Record, error)
	ItemsAt(ctx context.Context, locationIDs []int64) ([]items.Item, error)
}

// LinkChecker answers linkage questions about shops and depots.
type LinkChecker interface {
	IsLinked(ctx context.Context, shopID, depotID int64) (bool, error)
	LinkedDepots(ctx context.Context, shopID int64) ([]int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort registers processed operation ids.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Enqueuer schedules follow-up work after a withdrawal.
type Enqueuer interface {
	EnqueueLowStockCheck(ctx context.Context, itemID int64) error
}

// MetricsPort counts withdrawals.
type MetricsPort interface {
	ObserveTransfer(mode, outcome string, quantity int)
}

// Dependencies groups optional collaborators. Nil members are skipped.
type Dependencies struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Jobs        Enqueuer
	Metrics     MetricsPort
}

// Service is the transfer engine.
type Service struct {
	repo   RepositoryPort
	links  LinkChecker
	deps   Dependencies
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, links LinkChecker, deps Dependencies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, links: links, deps: deps, logger: logger}
}

// Withdraw moves quantity out of a depot item. In transfer mode the stock is
// credited to the item with the same name and category at the shop, which is
// created when missing. Every write, the history record included, commits
// together or not at all. Replaying an operation id returns the record of
// the first call.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (Record, error) {
	rec, err := s.withdraw(ctx, input)
	if s.deps.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
		}
		s.deps.Metrics.ObserveTransfer(string(input.Mode), outcome, input.Quantity)
	}
	return rec, err
}

func (s *Service) withdraw(ctx context.Context, input WithdrawInput) (Record, error) {
	if err := s.precheck(ctx, &input); err != nil {
		return Record{}, err
	}

	if rec, err := s.repo.GetByOperationID(ctx, input.OperationID); err == nil {
		return matchReplay(rec, input)
	} else if !errors.Is(err, ErrRecordNotFound) {
		return Record{}, classify(err)
	}

	if s.deps.Idempotency != nil {
		if err := s.deps.Idempotency.CheckAndInsert(ctx, input.OperationID, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.replay(ctx, input)
			}
			return Record{}, classify(err)
		}
	}

	rec, err := s.apply(ctx, input)
	if errors.Is(err, errDuplicateOperation) {
		return s.replay(ctx, input)
	}
	if err != nil {
		if s.deps.Idempotency != nil {
			if delErr := s.deps.Idempotency.Delete(ctx, input.OperationID); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("operation_id", input.OperationID), slog.Any("error", delErr))
			}
		}
		return Record{}, err
	}

	s.afterCommit(ctx, input, rec)
	return rec, nil
}

// precheck rejects invalid requests before anything is written.
func (s *Service) precheck(ctx context.Context, input *WithdrawInput) error {
	if !input.Mode.Valid() {
		return newError(KindInvalidInput, fmt.Sprintf("unknown mode %q", input.Mode), nil)
	}
	if input.Item.ID <= 0 || input.DepotID <= 0 {
		return newError(KindInvalidInput, "item and depot are required", nil)
	}
	if input.Quantity <= 0 {
		return newError(KindInvalidQuantity, "quantity must be greater than zero", nil)
	}
	if input.Quantity > input.Item.Quantity {
		return newError(KindInvalidQuantity,
			fmt.Sprintf("requested %d but only %d available", input.Quantity, input.Item.Quantity), nil)
	}
	if input.Mode == ModeRemove {
		input.ShopID = nil
	}
	if input.Mode == ModeTransfer && (input.ShopID == nil || *input.ShopID <= 0) {
		return newError(KindMissingDestination, "transfer requires a destination shop", nil)
	}

	if input.OperationID == "" {
		input.OperationID = uuid.NewString()
	} else if id, err := uuid.Parse(input.OperationID); err != nil {
		return newError(KindInvalidInput, "operation id must be a uuid", nil)
	} else {
		input.OperationID = id.String()
	}

	if !input.Actor.CanAct(input.DepotID) {
		return newError(KindPermissionDenied, "no rights on depot "+strconv.FormatInt(input.DepotID, 10), nil)
	}
	if input.Mode == ModeTransfer {
		shopID := *input.ShopID
		if !input.Actor.CanAct(shopID) {
			return newError(KindPermissionDenied, "no rights on shop "+strconv.FormatInt(shopID, 10), nil)
		}
		linked, err := s.links.IsLinked(ctx, shopID, input.DepotID)
		if err != nil {
			return classify(err)
		}
		if !linked {
			return newError(KindPermissionDenied,
				fmt.Sprintf("depot %d does not supply shop %d", input.DepotID, shopID), nil)
		}
	}
	return nil
}

// apply runs the withdrawal transaction. A concurrent creation of the same
// shop item loses on the unique match key, so the loser runs once more and
// merges into the winner's row.
func (s *Service) apply(ctx context.Context, input WithdrawInput) (Record, error) {
	var rec Record
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var txErr error
			rec, txErr = s.applyTx(ctx, tx, input)
			return txErr
		})
		if !errors.Is(err, items.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return Record{}, classify(err)
	}
	return rec, nil
}

func (s *Service) applyTx(ctx context.Context, tx TxRepository, input WithdrawInput) (Record, error) {
	depotItem, err := tx.GetItemForUpdate(ctx, input.Item.ID)
	if err != nil {
		return Record{}, err
	}
	if depotItem.LocationID != input.DepotID {
		return Record{}, newError(KindItemNotFound,
			fmt.Sprintf("item %d is not held at depot %d", depotItem.ID, input.DepotID), nil)
	}
	if input.Quantity > depotItem.Quantity {
		return Record{}, newError(KindInvalidQuantity,
			fmt.Sprintf("requested %d but only %d available", input.Quantity, depotItem.Quantity), nil)
	}

	var shopItemID *int64
	if input.Mode == ModeTransfer {
		id, err := s.creditShop(ctx, tx, *input.ShopID, depotItem, input.Quantity)
		if err != nil {
			return Record{}, err
		}
		shopItemID = &id
	}

	if err := tx.SetQuantity(ctx, depotItem.ID, max(0, depotItem.Quantity-input.Quantity)); err != nil {
		return Record{}, err
	}

	return tx.InsertRecord(ctx, Record{
		OperationID: input.OperationID,
		Type:        input.Mode,
		ItemID:      depotItem.ID,
		ItemName:    depotItem.Name,
		Category:    depotItem.Category,
		Unit:        depotItem.Unit,
		Quantity:    input.Quantity,
		DepotID:     input.DepotID,
		ShopID:      input.ShopID,
		ShopItemID:  shopItemID,
		ActorID:     input.Actor.ID,
		ActorName:   input.Actor.Name,
	})
}

// creditShop merges quantity into the shop item matching source, creating it
// from the source's fields when none exists.
func (s *Service) creditShop(ctx context.Context, tx TxRepository, shopID int64, source items.Item, quantity int) (int64, error) {
	existing, err := tx.FindItemForUpdate(ctx, shopID, source.MatchKey())
	switch {
	case err == nil:
		if err := tx.SetQuantity(ctx, existing.ID, existing.Quantity+quantity); err != nil {
			return 0, err
		}
		return existing.ID, nil
	case errors.Is(err, items.ErrNotFound):
		created, err := tx.CreateItem(ctx, items.Item{
			LocationID:   shopID,
			Name:         source.Name,
			Category:     source.Category,
			Description:  source.Description,
			Unit:         source.Unit,
			Quantity:     quantity,
			MinThreshold: source.MinThreshold,
			Price:        source.Price,
		})
		if err != nil {
			return 0, err
		}
		return created.ID, nil
	default:
		return 0, err
	}
}

func (s *Service) replay(ctx context.Context, input WithdrawInput) (Record, error) {
	rec, err := s.repo.GetByOperationID(ctx, input.OperationID)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, fmt.Errorf("transfer %s: %w", input.OperationID, shared.ErrIdempotencyConflict)
	}
	if err != nil {
		return Record{}, classify(err)
	}
	return matchReplay(rec, input)
}

// matchReplay returns rec for a retried request. An operation id reused for
// a different withdrawal is a conflict.
func matchReplay(rec Record, input WithdrawInput) (Record, error) {
	if !rec.sameRequest(input) {
		return Record{}, fmt.Errorf("transfer %s was recorded for another withdrawal: %w", input.OperationID, shared.ErrIdempotencyConflict)
	}
	return rec, nil
}

func (s *Service) afterCommit(ctx context.Context, input WithdrawInput, rec Record) {
	if s.deps.Audit != nil {
		meta := map[string]any{
			"item_id":  rec.ItemID,
			"quantity": rec.Quantity,
			"depot_id": rec.DepotID,
		}
		if rec.ShopID != nil {
			meta["shop_id"] = *rec.ShopID
			meta["shop_item_id"] = *rec.ShopItemID
		}
		err := s.deps.Audit.Record(ctx, shared.AuditLog{
			ActorID:  input.Actor.ID,
			Action:   "transfer." + string(rec.Type),
			Entity:   "transfer",
			EntityID: rec.OperationID,
			Meta:     meta,
			At:       rec.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("audit transfer", slog.String("operation_id", rec.OperationID), slog.Any("error", err))
		}
	}
	if s.deps.Jobs != nil {
		if err := s.deps.Jobs.EnqueueLowStockCheck(ctx, rec.ItemID); err != nil {
			s.logger.Warn("enqueue low stock check", slog.Int64("item_id", rec.ItemID), slog.Any("error", err))
		}
	}
	s.logger.Info("stock withdrawn",
		slog.String("operation_id", rec.OperationID),
		slog.String("mode", string(rec.Type)),
		slog.Int64("item_id", rec.ItemID),
		slog.Int("quantity", rec.Quantity),
		slog.String("actor_id", rec.ActorID),
	)
}

// History lists transfer records newest first.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	filter.Limit = shared.ClampLimit(filter.Limit)
	return s.repo.History(ctx, filter)
}

// Candidates lists the items a shop can withdraw: every stocked item held
// by a depot linked to the shop.
func (s *Service) Candidates(ctx context.Context, shopID int64) ([]items.Item, error) {
	depots, err := s.links.LinkedDepots(ctx, shopID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ItemsAt(ctx, depots)
	if err != nil {
		return nil, err
	}
	out := make([]items.Item, 0, len(all))
	for _, it := range all {
		if it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out, nil
}

// classify maps store failures onto withdrawal error kinds.
func classify(err error) error {
	var te *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &te):
		return err
	case errors.Is(err, items.ErrNotFound):
		return newError(KindItemNotFound, "item no longer exists", err)
	case db.IsUnavailable(err), db.IsRetryable(err):
		return newError(KindUnavailable, "store unavailable, retry later", err)
	}
	return err
}
