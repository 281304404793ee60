package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/types"
)

// FavoriteOrder is a named snapshot of cart references a user can replay
// later. Only ids and quantities are stored; everything else is re-resolved
// at reorder time.
type FavoriteOrder struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Name      string              `gorm:"column:name;not null"`
	Items     types.FavoriteItems `gorm:"column:items;type:jsonb;serializer:json;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *FavoriteOrder) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
