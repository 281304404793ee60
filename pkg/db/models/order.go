package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/enums"
)

// Order is a placed order: the snapshot written at payment confirmation.
// Unlike cart lines, the name and unit price are frozen here so history
// survives catalog edits.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'pending_payment'"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Currency        string            `gorm:"column:currency;not null"`
	PaymentIntentID string            `gorm:"column:payment_intent_id;not null"`
	SharedOrderID   *uuid.UUID        `gorm:"column:shared_order_id;type:uuid"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is one frozen line of a placed order.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitCount int             `gorm:"column:unit_count;not null;default:1"`
	PackID    *uuid.UUID      `gorm:"column:pack_id;type:uuid"`
	PackName  *string         `gorm:"column:pack_name"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *OrderItem) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
