package addresses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

type gormTxManager struct {
	db *gorm.DB
}

func (m gormTxManager) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

func setupAddressTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS delivery_addresses (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  user_id TEXT NOT NULL,
  label TEXT NOT NULL,
  recipient_name TEXT NOT NULL,
  street TEXT NOT NULL,
  apartment TEXT,
  floor TEXT,
  building_code TEXT,
  city TEXT NOT NULL,
  postal_code TEXT NOT NULL,
  phone TEXT NOT NULL,
  instructions TEXT,
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_addresses_default
  ON delivery_addresses (user_id) WHERE is_default;`).Error)
	return db
}

func newAddressService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gormTxManager{db: db})
	require.NoError(t, err)
	return svc
}

func sampleInput(label string, isDefault bool) AddressInput {
	return AddressInput{
		Label:         label,
		RecipientName: "Pat Shopper",
		Street:        "12 rue des Halles",
		City:          "Lyon",
		PostalCode:    "69002",
		Phone:         "+33612345678",
		IsDefault:     isDefault,
	}
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	db := setupAddressTestDB(t)
	svc := newAddressService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	created, err := svc.Create(ctx, userID, sampleInput("home", false))
	require.NoError(t, err)
	assert.True(t, created.IsDefault)
}

func TestOnlyOneDefaultAtATime(t *testing.T) {
	db := setupAddressTestDB(t)
	svc := newAddressService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	home, err := svc.Create(ctx, userID, sampleInput("home", false))
	require.NoError(t, err)
	work, err := svc.Create(ctx, userID, sampleInput("work", true))
	require.NoError(t, err)
	assert.True(t, work.IsDefault)

	var reloaded models.DeliveryAddress
	require.NoError(t, db.First(&reloaded, "id = ?", home.ID).Error)
	assert.False(t, reloaded.IsDefault)

	var defaults int64
	require.NoError(t, db.Model(&models.DeliveryAddress{}).
		Where("user_id = ? AND is_default", userID).Count(&defaults).Error)
	assert.EqualValues(t, 1, defaults)
}

func TestSetDefaultMovesFlag(t *testing.T) {
	db := setupAddressTestDB(t)
	svc := newAddressService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	home, err := svc.Create(ctx, userID, sampleInput("home", false))
	require.NoError(t, err)
	work, err := svc.Create(ctx, userID, sampleInput("work", false))
	require.NoError(t, err)
	assert.False(t, work.IsDefault)

	promoted, err := svc.SetDefault(ctx, userID, work.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsDefault)

	var old models.DeliveryAddress
	require.NoError(t, db.First(&old, "id = ?", home.ID).Error)
	assert.False(t, old.IsDefault)
}

func TestDeleteDefaultPromotesAnother(t *testing.T) {
	db := setupAddressTestDB(t)
	svc := newAddressService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	home, err := svc.Create(ctx, userID, sampleInput("home", false))
	require.NoError(t, err)
	_, err = svc.Create(ctx, userID, sampleInput("work", false))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, userID, home.ID))

	remaining, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.True(t, remaining[0].IsDefault)
}

func TestGetScopedToOwner(t *testing.T) {
	db := setupAddressTestDB(t)
	svc := newAddressService(t, db)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, sampleInput("home", false))
	require.NoError(t, err)

	_, err = svc.Get(ctx, uuid.New(), created.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestDeleteMissingAddressIsNoop(t *testing.T) {
	db := setupAddressTestDB(t)
	svc := newAddressService(t, db)

	require.NoError(t, svc.Delete(context.Background(), uuid.New(), uuid.New()))
}
