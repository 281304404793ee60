package types

import "github.com/google/uuid"

// FavoriteItemSnapshot is the minimal reference stored inside a favorite
// order: which product or pack, and how many. Prices and names are resolved
// against live data on reorder, never snapshotted.
type FavoriteItemSnapshot struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	PackID    *uuid.UUID `json:"pack_id,omitempty"`
	Quantity  int        `json:"quantity"`
}

// FavoriteItems is the JSONB payload of a favorite order.
type FavoriteItems []FavoriteItemSnapshot
