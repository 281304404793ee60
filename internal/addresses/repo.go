package addresses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
)

// Repository exposes delivery address persistence operations.
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

// Create inserts an address.
func (r *Repository) Create(ctx context.Context, address *models.DeliveryAddress) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// ListByUser returns the user's addresses, default first, then newest.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeliveryAddress, error) {
	var addresses []models.DeliveryAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").
		Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// FindByID loads one address owned by the user.
func (r *Repository) FindByID(ctx context.Context, userID, addressID uuid.UUID) (*models.DeliveryAddress, error) {
	var address models.DeliveryAddress
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// CountByUser returns how many addresses the user has saved.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryAddress{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// Save persists updated fields of an existing address.
func (r *Repository) Save(ctx context.Context, address *models.DeliveryAddress) error {
	return r.db.WithContext(ctx).Save(address).Error
}

// ClearDefault drops the default flag from every address of the user.
func (r *Repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAddress{}).
		Where("user_id = ? AND is_default", userID).
		Update("is_default", false).Error
}

// Delete removes an address owned by the user.
func (r *Repository) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		Delete(&models.DeliveryAddress{}).Error
}
