package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
)

// Repository exposes cart persistence operations.
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

// ListByUser loads every cart row for a user with product and pack preloaded,
// ordered so pack groups come out contiguous.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Pack").
		Where("user_id = ?", userID).
		Order("pack_id, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindStandalone looks up the user's non-pack row for a product.
func (r *Repository) FindStandalone(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var row models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND pack_id IS NULL", userID, productID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByID loads one cart row owned by the user.
func (r *Repository) FindByID(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	var row models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListGroup loads every row of the user's group for a pack.
func (r *Repository) ListGroup(ctx context.Context, userID, packID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND pack_id = ?", userID, packID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts one cart row.
func (r *Repository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// CreateBatch inserts a set of cart rows in one statement.
func (r *Repository) CreateBatch(ctx context.Context, items []models.CartItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// UpdateQuantity sets the quantity of one row.
func (r *Repository) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// SetGroupQuantity sets the quantity on every row of a pack group so the rows
// stay synchronized.
func (r *Repository) SetGroupQuantity(ctx context.Context, userID, packID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND pack_id = ?", userID, packID).
		Update("quantity", quantity).Error
}

// Delete removes one row owned by the user.
func (r *Repository) Delete(ctx context.Context, userID, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&models.CartItem{}).Error
}

// DeleteGroup removes every row of the user's group for a pack.
func (r *Repository) DeleteGroup(ctx context.Context, userID, packID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND pack_id = ?", userID, packID).
		Delete(&models.CartItem{}).Error
}

// DeleteByUser empties the user's cart.
func (r *Repository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}
