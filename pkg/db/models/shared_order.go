package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/enums"
)

// SharedOrder is a group cart that multiple users contribute to. Its id
// doubles as the invite code. Expiry is derived from ExpiresAt, never stored.
type SharedOrder struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID    uuid.UUID                `gorm:"column:creator_id;type:uuid;not null;index"`
	Name         string                   `gorm:"column:name;not null"`
	Status       enums.SharedOrderStatus  `gorm:"column:status;not null;default:'active'"`
	ExpiresAt    time.Time                `gorm:"column:expires_at;not null"`
	Participants []SharedOrderParticipant `gorm:"foreignKey:SharedOrderID;constraint:OnDelete:CASCADE"`
	Items        []SharedOrderItem        `gorm:"foreignKey:SharedOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *SharedOrder) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SharedOrderParticipant records membership. The (order, user) pair is unique
// so joining twice never duplicates a row.
type SharedOrderParticipant struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SharedOrderID uuid.UUID             `gorm:"column:shared_order_id;type:uuid;not null;uniqueIndex:idx_shared_order_user"`
	UserID        uuid.UUID             `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_shared_order_user"`
	Role          enums.ParticipantRole `gorm:"column:role;not null;default:'participant'"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (s *SharedOrderParticipant) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SharedOrderItem is a contributed line, attributed to the user who added it.
// Quantity and UnitCount follow the cart line semantics: instances of the
// pack group, and units of the product per instance.
type SharedOrderItem struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SharedOrderID uuid.UUID        `gorm:"column:shared_order_id;type:uuid;not null;index"`
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	ProductID     uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	Quantity      int              `gorm:"column:quantity;not null"`
	UnitCount     int              `gorm:"column:unit_count;not null;default:1"`
	PackID        *uuid.UUID       `gorm:"column:pack_id;type:uuid"`
	PackUnitPrice *decimal.Decimal `gorm:"column:pack_unit_price;type:numeric(12,4)"`
	Product       *Product         `gorm:"foreignKey:ProductID"`
	Pack          *Pack            `gorm:"foreignKey:PackID"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (s *SharedOrderItem) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Units is the total number of product units the line represents.
func (s *SharedOrderItem) Units() int {
	units := s.UnitCount
	if units < 1 {
		units = 1
	}
	return s.Quantity * units
}
