package favorites

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
)

// Repository exposes favorite order persistence operations.
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

// Create inserts a favorite order.
func (r *Repository) Create(ctx context.Context, favorite *models.FavoriteOrder) error {
	return r.db.WithContext(ctx).Create(favorite).Error
}

// ListByUser returns the user's favorites, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.FavoriteOrder, error) {
	var favorites []models.FavoriteOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	if err != nil {
		return nil, err
	}
	return favorites, nil
}

// FindByID loads one favorite owned by the user.
func (r *Repository) FindByID(ctx context.Context, userID, favoriteID uuid.UUID) (*models.FavoriteOrder, error) {
	var favorite models.FavoriteOrder
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", favoriteID, userID).
		First(&favorite).Error
	if err != nil {
		return nil, err
	}
	return &favorite, nil
}

// Delete removes a favorite. Deleting a missing row is not an error.
func (r *Repository) Delete(ctx context.Context, userID, favoriteID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", favoriteID, userID).
		Delete(&models.FavoriteOrder{}).Error
}
