package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Pack is a bundled offering sold at a single price. Its contents are the
// union of fixed product lines and per-category customization slots.
type Pack struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL    *string         `gorm:"column:image_url"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	Products    []PackProduct   `gorm:"foreignKey:PackID;constraint:OnDelete:CASCADE"`
	Categories  []PackCategory  `gorm:"foreignKey:PackID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Pack) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PackProduct pins a concrete product into a pack. Fixed lines ship with
// every instance of the pack regardless of customization. Quantity is the
// number of units of the product included per pack instance.
type PackProduct struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PackID    uuid.UUID `gorm:"column:pack_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	IsFixed   bool      `gorm:"column:is_fixed;not null;default:true"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *PackProduct) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PackCategory declares a customization slot: the shopper must pick exactly
// ProductsCount units from the referenced category.
type PackCategory struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PackID        uuid.UUID `gorm:"column:pack_id;type:uuid;not null;index"`
	CategoryID    uuid.UUID `gorm:"column:category_id;type:uuid;not null"`
	ProductsCount int       `gorm:"column:products_count;not null"`
	Category      *Category `gorm:"foreignKey:CategoryID"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *PackCategory) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
