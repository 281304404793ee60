package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem is one cart line for a user. Standalone lines reference only a
// product; pack lines additionally carry the pack id and the per-line share
// of the pack price computed at expansion time. For pack lines Quantity is
// the number of pack instances (synchronized across the group) and UnitCount
// is how many units of the product each instance ships.
type CartItem struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID     uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	Quantity      int              `gorm:"column:quantity;not null"`
	UnitCount     int              `gorm:"column:unit_count;not null;default:1"`
	PackID        *uuid.UUID       `gorm:"column:pack_id;type:uuid"`
	PackUnitPrice *decimal.Decimal `gorm:"column:pack_unit_price;type:numeric(12,4)"`
	IsFixed       bool             `gorm:"column:is_fixed;not null;default:false"`
	Product       *Product         `gorm:"foreignKey:ProductID"`
	Pack          *Pack            `gorm:"foreignKey:PackID"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Units is the total number of product units the line represents.
func (c *CartItem) Units() int {
	units := c.UnitCount
	if units < 1 {
		units = 1
	}
	return c.Quantity * units
}
