package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockflow/internal/sequence"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

const idempotencyModule = "documents"

// maxNumberDraws bounds how many taken numbers one issue skips.
const maxNumberDraws = 20

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Document, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort registers processed request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service issues invoices and quotes.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	idem   IdempotencyPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit and idem may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idem: idem, logger: logger, now: time.Now}
}

// Create issues a document. Lines are priced from the items unless the
// caller overrides the unit price. Invoices debit the sold quantities. The
// number, the stock debit and the document commit together.
func (s *Service) Create(ctx context.Context, input CreateInput) (Document, error) {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	if err := shared.ValidateStruct(input); err != nil {
		return Document{}, err
	}
	if !input.Actor.CanAct(input.LocationID) {
		return Document{}, fmt.Errorf("location %d: %w", input.LocationID, shared.ErrForbidden)
	}
	issuedAt := input.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.now()
	}

	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.replay(ctx, input)
			}
			return Document{}, err
		}
	}

	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, total, err := s.priceLines(ctx, tx, input)
		if err != nil {
			return err
		}
		doc, err = s.insertNumbered(ctx, tx, issuedAt.Year(), Document{
			DocType:        input.DocType,
			LocationID:     input.LocationID,
			CustomerName:   input.CustomerName,
			Notes:          input.Notes,
			Total:          total,
			CreatedBy:      input.Actor.ID,
			Lines:          lines,
			IdempotencyKey: input.IdempotencyKey,
		})
		return err
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, input.IdempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", delErr))
			}
		}
		return Document{}, err
	}

	s.recordAudit(ctx, input.Actor, doc)
	return doc, nil
}

// insertNumbered draws numbers until one is free. Numbers already stored,
// such as timestamp fallbacks, are skipped and the counter moves past them.
func (s *Service) insertNumbered(ctx context.Context, tx TxRepository, year int, doc Document) (Document, error) {
	for range maxNumberDraws {
		number, err := tx.NextNumber(ctx, doc.DocType, year)
		if err != nil {
			return Document{}, err
		}
		doc.Number = number
		inserted, err := tx.InsertDocument(ctx, doc)
		if errors.Is(err, ErrNumberTaken) {
			s.logger.Warn("document number taken, drawing next", slog.String("number", number))
			continue
		}
		return inserted, err
	}
	return Document{}, fmt.Errorf("%s %d: no free number after %d draws: %w", doc.DocType, year, maxNumberDraws, ErrNumberTaken)
}

// replay returns the document already issued for the request's key. A key
// reused for different lines, or still being processed, is a conflict.
func (s *Service) replay(ctx context.Context, input CreateInput) (Document, error) {
	doc, err := s.repo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
	if errors.Is(err, ErrNotFound) {
		return Document{}, fmt.Errorf("document request %s: %w", input.IdempotencyKey, shared.ErrIdempotencyConflict)
	}
	if err != nil {
		return Document{}, err
	}
	if !doc.sameRequest(input) || !input.Actor.CanAct(doc.LocationID) {
		return Document{}, fmt.Errorf("document request %s: %w", input.IdempotencyKey, shared.ErrIdempotencyConflict)
	}
	return doc, nil
}

func (s *Service) priceLines(ctx context.Context, tx TxRepository, input CreateInput) ([]Line, decimal.Decimal, error) {
	lines := make([]Line, 0, len(input.Lines))
	total := decimal.Zero
	for _, in := range input.Lines {
		it, err := tx.GetItemForUpdate(ctx, in.ItemID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if it.LocationID != input.LocationID {
			return nil, decimal.Zero, fmt.Errorf("item %d: %w", it.ID, ErrForeignItem)
		}
		price := it.Price
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		if !price.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("item %d: %w", it.ID, ErrInvalidPrice)
		}
		if input.DocType == sequence.DocInvoice {
			if in.Quantity > it.Quantity {
				return nil, decimal.Zero, fmt.Errorf("%s: requested %d, %d on hand: %w", it.Name, in.Quantity, it.Quantity, ErrInsufficientStock)
			}
			if err := tx.SetQuantity(ctx, it.ID, it.Quantity-in.Quantity); err != nil {
				return nil, decimal.Zero, err
			}
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
		total = total.Add(lineTotal)
		lines = append(lines, Line{
			ItemID:    it.ID,
			Name:      it.Name,
			Quantity:  in.Quantity,
			UnitPrice: price,
			LineTotal: lineTotal,
		})
	}
	return lines, total, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, doc Document) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "document.create",
		Entity:   string(doc.DocType),
		EntityID: strconv.FormatInt(doc.ID, 10),
		Meta: map[string]any{
			"number":      doc.Number,
			"location_id": doc.LocationID,
			"total":       doc.Total.StringFixed(2),
			"lines":       len(doc.Lines),
		},
	})
	if err != nil {
		s.logger.Warn("audit document", slog.String("number", doc.Number), slog.Any("error", err))
	}
}

// Get returns one document with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	if id <= 0 {
		return Document{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns document headers newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	if filter.DocType != "" && !filter.DocType.Valid() {
		return nil, sequence.ErrInvalidDocType
	}
	filter.Limit = shared.ClampLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}
