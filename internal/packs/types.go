package packs

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductQty is one pick inside a customization slot.
type ProductQty struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// Selections maps a pack category (customization slot) to the shopper's
// picks for that slot.
type Selections map[uuid.UUID][]ProductQty

// Line is one expanded cart line for a pack: a distinct product, how many
// units of it one pack instance ships, and the even share of the pack price
// it carries. Instance counts are tracked at the group level by the cart,
// not per line.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	IsFixed   bool            `json:"is_fixed"`
	UnitShare decimal.Decimal `json:"unit_share"`
}

// IncompleteCategory describes one unsatisfied customization slot.
type IncompleteCategory struct {
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Required     int       `json:"required"`
	Selected     int       `json:"selected"`
}
