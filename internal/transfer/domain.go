package transfer

import (
	"time"

	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Mode selects what happens to withdrawn stock.
type Mode string

const (
	// ModeTransfer credits the withdrawn quantity to a linked shop.
	ModeTransfer Mode = "transfer"
	// ModeRemove takes stock out of the depot without a destination.
	ModeRemove Mode = "remove"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeTransfer || m == ModeRemove
}

// ItemSnapshot is the caller's view of the depot item being withdrawn.
// Quantity is the availability the caller saw; the engine re-reads it under lock.
type ItemSnapshot struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Quantity int    `json:"quantity"`
}

// WithdrawInput is one withdrawal request.
type WithdrawInput struct {
	OperationID string
	Item        ItemSnapshot
	Quantity    int
	DepotID     int64
	ShopID      *int64
	Mode        Mode
	Actor       shared.Actor
}

// Record is an immutable history entry. Item fields are captured by value so
// the entry stays readable after the item changes or disappears.
type Record struct {
	ID          int64     `json:"id"`
	OperationID string    `json:"operation_id"`
	Type        Mode      `json:"type"`
	ItemID      int64     `json:"item_id"`
	ItemName    string    `json:"item_name"`
	Category    string    `json:"category"`
	Unit        string    `json:"unit"`
	Quantity    int       `json:"quantity"`
	DepotID     int64     `json:"depot_id"`
	ShopID      *int64    `json:"shop_id"`
	ShopItemID  *int64    `json:"shop_item_id"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// sameRequest reports whether r records the withdrawal described by input.
func (r Record) sameRequest(input WithdrawInput) bool {
	if r.Type != input.Mode || r.ItemID != input.Item.ID || r.Quantity != input.Quantity || r.DepotID != input.DepotID {
		return false
	}
	if r.ShopID == nil || input.ShopID == nil {
		return r.ShopID == nil && input.ShopID == nil
	}
	return *r.ShopID == *input.ShopID
}

// HistoryFilter narrows history listings. Zero fields are ignored.
type HistoryFilter struct {
	DepotID int64
	ShopID  int64
	ItemID  int64
	Limit   int
}
