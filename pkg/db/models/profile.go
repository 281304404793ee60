package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile carries the shopper-facing attributes of a user. It is written in a
// separate step from the identity row so registration can retry profile
// creation without re-creating credentials.
type Profile struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Phone     *string   `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
