package locations

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Kind distinguishes receiving shops from supplying depots.
type Kind string

const (
	// KindShop is a retail location receiving stock.
	KindShop Kind = "shop"
	// KindDepot is a warehouse supplying linked shops.
	KindDepot Kind = "depot"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindShop || k == KindDepot
}

// Location is a shop or a depot. Linked ids are derived from the link table:
// shops carry LinkedDepotIDs, depots carry LinkedShopIDs.
type Location struct {
	ID             int64     `json:"id"`
	Kind           Kind      `json:"kind"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	ContactName    string    `json:"contact_name,omitempty"`
	ContactPhone   string    `json:"contact_phone,omitempty"`
	ContactEmail   string    `json:"contact_email,omitempty"`
	LinkedDepotIDs []int64   `json:"linked_depot_ids,omitempty"`
	LinkedShopIDs  []int64   `json:"linked_shop_ids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateInput describes a new location.
type CreateInput struct {
	Kind         Kind   `json:"kind" validate:"required,oneof=shop depot"`
	Name         string `json:"name" validate:"required,max=200"`
	Address      string `json:"address" validate:"max=500"`
	ContactName  string `json:"contact_name" validate:"max=200"`
	ContactPhone string `json:"contact_phone" validate:"max=50"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

// UpdateInput replaces the descriptive fields of a location. Kind is immutable.
type UpdateInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Address      string `json:"address" validate:"max=500"`
	ContactName  string `json:"contact_name" validate:"max=200"`
	ContactPhone string `json:"contact_phone" validate:"max=50"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

// ListFilter narrows location listings.
type ListFilter struct {
	Kind   Kind
	Search string
}

// Links is the neighbourhood of one location in the shop/depot graph.
type Links struct {
	LocationID int64   `json:"location_id"`
	Kind       Kind    `json:"kind"`
	LinkedIDs  []int64 `json:"linked_ids"`
}

var (
	// ErrNotFound indicates the location does not exist.
	ErrNotFound = fmt.Errorf("location %w", shared.ErrNotFound)
	// ErrInvalidLink indicates a link that does not join one shop and one depot.
	ErrInvalidLink = fmt.Errorf("%w: a link must join a shop and a depot", shared.ErrValidation)
	// ErrInUse indicates the location is still referenced by issued documents.
	ErrInUse = fmt.Errorf("%w: location is referenced by issued documents", shared.ErrValidation)
)
