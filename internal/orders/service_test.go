package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	"github.com/epicerie-app/epicerie-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  total NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  payment_intent_id TEXT NOT NULL,
  shared_order_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  unit_count INTEGER NOT NULL DEFAULT 1,
  pack_id TEXT,
  pack_name TEXT,
  created_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, total string, createdAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          enums.OrderStatusConfirmed,
		Total:           decimal.RequireFromString(total),
		Currency:        "eur",
		PaymentIntentID: "pi_seed",
		CreatedAt:       createdAt,
		Items: []models.OrderItem{
			{
				ProductID: uuid.New(),
				Name:      "olive oil",
				UnitPrice: decimal.RequireFromString(total),
				Quantity:  1,
				UnitCount: 1,
			},
		},
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func TestListReturnsNewestFirst(t *testing.T) {
	db := setupOrdersTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	seedOrder(t, db, userID, "10.00", base)
	newest := seedOrder(t, db, userID, "20.00", base.Add(time.Hour))
	seedOrder(t, db, uuid.New(), "99.00", base.Add(2*time.Hour))

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	history, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newest.ID, history[0].ID)
	assert.True(t, history[0].Total.Equal(decimal.RequireFromString("20")))
	require.Len(t, history[0].Items, 1)
	assert.Equal(t, "olive oil", history[0].Items[0].Name)
}

func TestListEmptyHistory(t *testing.T) {
	db := setupOrdersTestDB(t)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	history, err := svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, history)
}
