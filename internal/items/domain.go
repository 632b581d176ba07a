package items

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/odyssey-erp/stockflow/internal/shared"
)

// DefaultMinThreshold applies when an item is created without a threshold.
const DefaultMinThreshold = 5

// Item is a stock record held at one location.
type Item struct {
	ID           int64           `json:"id"`
	LocationID   int64           `json:"location_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Unit         string          `json:"unit"`
	Quantity     int             `json:"quantity"`
	MinThreshold int             `json:"min_threshold"`
	Price        decimal.Decimal `json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MatchKey is the merge identity of the item within its location.
func (i Item) MatchKey() string {
	return MatchKey(i.Name, i.Category)
}

// LowStock reports whether the quantity has reached the threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.MinThreshold
}

// MatchKey folds name and category into the key used to merge items.
// Comparison ignores surrounding whitespace and letter case.
func MatchKey(name, category string) string {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(name)) + "|" + fold.String(strings.TrimSpace(category))
}

// CreateInput describes a new item.
type CreateInput struct {
	LocationID   int64           `json:"-" validate:"gt=0"`
	Name         string          `json:"name" validate:"required,max=200"`
	Category     string          `json:"category" validate:"max=100"`
	Description  string          `json:"description" validate:"max=1000"`
	Unit         string          `json:"unit" validate:"max=30"`
	Quantity     int             `json:"quantity" validate:"gte=0"`
	MinThreshold *int            `json:"min_threshold" validate:"omitempty,gte=0"`
	Price        decimal.Decimal `json:"price"`
}

// UpdateInput patches an item. Nil fields are left untouched.
type UpdateInput struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Category     *string          `json:"category" validate:"omitempty,max=100"`
	Description  *string          `json:"description" validate:"omitempty,max=1000"`
	Unit         *string          `json:"unit" validate:"omitempty,max=30"`
	Quantity     *int             `json:"quantity" validate:"omitempty,gte=0"`
	MinThreshold *int             `json:"min_threshold" validate:"omitempty,gte=0"`
	Price        *decimal.Decimal `json:"price"`
}

// Apply merges the patch into item.
func (u UpdateInput) Apply(item Item) Item {
	if u.Name != nil {
		item.Name = strings.TrimSpace(*u.Name)
	}
	if u.Category != nil {
		item.Category = strings.TrimSpace(*u.Category)
	}
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.Unit != nil {
		item.Unit = *u.Unit
	}
	if u.Quantity != nil {
		item.Quantity = *u.Quantity
	}
	if u.MinThreshold != nil {
		item.MinThreshold = *u.MinThreshold
	}
	if u.Price != nil {
		item.Price = *u.Price
	}
	return item
}

// ListFilter narrows item listings at one location.
type ListFilter struct {
	LocationID int64
	Search     string
	Limit      int
}

var (
	// ErrNotFound indicates the item does not exist.
	ErrNotFound = fmt.Errorf("item %w", shared.ErrNotFound)
	// ErrLocationNotFound indicates the owning location does not exist.
	ErrLocationNotFound = fmt.Errorf("location %w", shared.ErrNotFound)
	// ErrDuplicate indicates an item with the same name and category already exists at the location.
	ErrDuplicate = fmt.Errorf("%w: item with the same name and category exists at this location", shared.ErrDuplicate)
	// ErrInvalidPrice indicates a missing or non-positive price.
	ErrInvalidPrice = fmt.Errorf("%w: price must be greater than zero", shared.ErrValidation)
)
