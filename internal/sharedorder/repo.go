package sharedorder

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
)

// Repository exposes shared order persistence operations.
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

// Create inserts the order row.
func (r *Repository) Create(ctx context.Context, order *models.SharedOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Get loads an order with participants and contributed items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.SharedOrder, error) {
	var order models.SharedOrder
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Items.Product").
		Preload("Items.Pack").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// AddParticipant inserts a membership row, ignoring the insert when the
// (order, user) pair already exists so joining is idempotent.
func (r *Repository) AddParticipant(ctx context.Context, participant *models.SharedOrderParticipant) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shared_order_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(participant).Error
}

// HasParticipant reports whether the user belongs to the order.
func (r *Repository) HasParticipant(ctx context.Context, orderID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SharedOrderParticipant{}).
		Where("shared_order_id = ? AND user_id = ?", orderID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddItems inserts contributed lines in one statement.
func (r *Repository) AddItems(ctx context.Context, items []models.SharedOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// UpdateItemQuantity sets one contributed line's quantity.
func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.SharedOrderItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// SetGroupQuantity synchronizes every row of one user's contributed pack
// group to the same instance count.
func (r *Repository) SetGroupQuantity(ctx context.Context, orderID, userID, packID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.SharedOrderItem{}).
		Where("shared_order_id = ? AND user_id = ? AND pack_id = ?", orderID, userID, packID).
		Update("quantity", quantity).Error
}

// UpdateStatus transitions the order's persisted status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.SharedOrder{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ListByParticipant returns the orders the user belongs to, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.SharedOrder, error) {
	var orders []models.SharedOrder
	err := r.db.WithContext(ctx).
		Joins("JOIN shared_order_participants p ON p.shared_order_id = shared_orders.id").
		Where("p.user_id = ?", userID).
		Order("shared_orders.created_at DESC").
		Preload("Participants").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
