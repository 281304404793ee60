package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryAddress is a saved drop-off location. At most one address per user
// carries is_default.
type DeliveryAddress struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Label         string    `gorm:"column:label;not null"`
	RecipientName string    `gorm:"column:recipient_name;not null"`
	Street        string    `gorm:"column:street;not null"`
	Apartment     *string   `gorm:"column:apartment"`
	Floor         *string   `gorm:"column:floor"`
	BuildingCode  *string   `gorm:"column:building_code"`
	City          string    `gorm:"column:city;not null"`
	PostalCode    string    `gorm:"column:postal_code;not null"`
	Phone         string    `gorm:"column:phone;not null"`
	Instructions  *string   `gorm:"column:instructions"`
	IsDefault     bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DeliveryAddress) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
