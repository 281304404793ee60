package packs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	"github.com/epicerie-app/epicerie-backend/pkg/pagination"
)

// Repository exposes pack persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List returns a cursor page of active packs with their contents preloaded.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.Pack, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Pack{}).
		Preload("Products.Product").
		Preload("Categories.Category").
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var packs []models.Pack
	if err := query.Find(&packs).Error; err != nil {
		return nil, "", err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	next := ""
	if len(packs) > limit {
		packs = packs[:limit]
		last := packs[len(packs)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return packs, next, nil
}

// GetWithContents loads a pack with fixed lines and customization slots.
func (r *Repository) GetWithContents(ctx context.Context, id uuid.UUID) (*models.Pack, error) {
	var pack models.Pack
	err := r.db.WithContext(ctx).
		Preload("Products.Product").
		Preload("Categories.Category").
		Where("id = ?", id).
		First(&pack).Error
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

// GetProductsByIDs loads the referenced products for selection validation.
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
