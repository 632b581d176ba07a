package documents

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockflow/internal/sequence"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Document is an issued invoice or quote.
type Document struct {
	ID           int64            `json:"id"`
	DocType      sequence.DocType `json:"doc_type"`
	Number       string           `json:"number"`
	LocationID   int64            `json:"location_id"`
	CustomerName string           `json:"customer_name"`
	Notes        string           `json:"notes"`
	Total        decimal.Decimal  `json:"total"`
	CreatedBy    string           `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	Lines        []Line           `json:"lines"`

	IdempotencyKey string `json:"-"`
}

// sameRequest reports whether doc was issued for the lines of input.
func (d Document) sameRequest(input CreateInput) bool {
	if d.DocType != input.DocType || d.LocationID != input.LocationID || len(d.Lines) != len(input.Lines) {
		return false
	}
	for i, line := range input.Lines {
		if d.Lines[i].ItemID != line.ItemID || d.Lines[i].Quantity != line.Quantity {
			return false
		}
	}
	return true
}

// Line is one priced item of a document.
type Line struct {
	ID        int64           `json:"id"`
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// LineInput requests quantity of an item. UnitPrice overrides the item price.
type LineInput struct {
	ItemID    int64            `json:"item_id" validate:"gt=0"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// CreateInput describes a document to issue.
type CreateInput struct {
	DocType        sequence.DocType `json:"doc_type" validate:"required,oneof=invoice quote"`
	LocationID     int64            `json:"location_id" validate:"gt=0"`
	CustomerName   string           `json:"customer_name" validate:"max=200"`
	Notes          string           `json:"notes" validate:"max=2000"`
	IssuedAt       time.Time        `json:"issued_at"`
	Lines          []LineInput      `json:"lines" validate:"required,min=1,max=200,dive"`
	Actor          shared.Actor     `json:"-"`
	IdempotencyKey string           `json:"-"`
}

// ListFilter narrows document listings. Zero fields are ignored.
type ListFilter struct {
	DocType    sequence.DocType
	Year       int
	LocationID int64
	Limit      int
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = fmt.Errorf("document %w", shared.ErrNotFound)
	// ErrInsufficientStock indicates an invoice line exceeds the stock on hand.
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", shared.ErrValidation)
	// ErrForeignItem indicates a line item held at another location.
	ErrForeignItem = fmt.Errorf("%w: item is not held at the document location", shared.ErrValidation)
	// ErrNumberTaken indicates the drawn number is already stored, usually a
	// timestamp fallback number issued earlier.
	ErrNumberTaken = fmt.Errorf("document number %w", shared.ErrDuplicate)
	// ErrInvalidPrice indicates a non-positive line price.
	ErrInvalidPrice = fmt.Errorf("%w: unit price must be greater than zero", shared.ErrValidation)
)
