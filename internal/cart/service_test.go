package cart

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

	"github.com/epicerie-app/epicerie-backend/internal/catalog"
	"github.com/epicerie-app/epicerie-backend/internal/packs"
	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

type gormTxManager struct {
	db *gorm.DB
}

func (m gormTxManager) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS packs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  image_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS pack_products (
  id TEXT PRIMARY KEY,
  pack_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  is_fixed INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS pack_categories (
  id TEXT PRIMARY KEY,
  pack_id TEXT NOT NULL,
  category_id TEXT NOT NULL,
  products_count INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_count INTEGER NOT NULL DEFAULT 1,
  pack_id TEXT,
  pack_unit_price NUMERIC,
  is_fixed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_items_user_product_standalone
  ON cart_items (user_id, product_id) WHERE pack_id IS NULL;`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type cartFixture struct {
	db  *gorm.DB
	svc Service
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	db := setupCartTestDB(t)
	packSvc, err := packs.NewService(packs.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db), packSvc, gormTxManager{db: db})
	require.NoError(t, err)
	return &cartFixture{db: db, svc: svc}
}

func (f *cartFixture) seedProduct(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		CategoryID: uuid.New(),
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&product).Error)
	return product
}

func (f *cartFixture) seedFixedPack(t *testing.T, name, price string, productIDs ...uuid.UUID) models.Pack {
	t.Helper()
	pack := models.Pack{
		ID:       uuid.New(),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&pack).Error)
	for _, productID := range productIDs {
		require.NoError(t, f.db.Create(&models.PackProduct{
			ID:        uuid.New(),
			PackID:    pack.ID,
			ProductID: productID,
			Quantity:  1,
			IsFixed:   true,
		}).Error)
	}
	return pack
}

func (f *cartFixture) seedPackLine(t *testing.T, packID, productID uuid.UUID, unitCount int) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.PackProduct{
		ID:        uuid.New(),
		PackID:    packID,
		ProductID: productID,
		Quantity:  unitCount,
		IsFixed:   true,
	}).Error)
}

func TestLoadCartEmpty(t *testing.T) {
	f := newCartFixture(t)

	view, err := f.svc.LoadCart(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Empty(t, view.Groups)
	assert.True(t, view.Total.IsZero())
}

func TestAddItemMergesDuplicateProduct(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	product := f.seedProduct(t, "yogurt", "1.20", 10)

	_, err := f.svc.AddItem(ctx, userID, product.ID, 2)
	require.NoError(t, err)

	view, err := f.svc.AddItem(ctx, userID, product.ID, 3)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("6")), "total was %s", view.Total)
}

func TestAddItemInsufficientStockCountsExistingLine(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	product := f.seedProduct(t, "eggs", "3.40", 2)

	_, err := f.svc.AddItem(ctx, userID, product.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, userID, product.ID, 2)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 2, details["available"])

	view, err := f.svc.LoadCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestAddPackGroupPricedOncePerGroup(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	a := f.seedProduct(t, "bread", "2.00", 10)
	b := f.seedProduct(t, "cheese", "5.00", 10)
	pack := f.seedFixedPack(t, "picnic", "9.00", a.ID, b.ID)
	loose := f.seedProduct(t, "water", "1.00", 10)

	_, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)

	view, err := f.svc.AddItem(ctx, userID, loose.ID, 2)
	require.NoError(t, err)

	require.Len(t, view.Groups, 1)
	group := view.Groups[0]
	assert.Equal(t, 1, group.Quantity)
	assert.Len(t, group.Items, 2)
	assert.True(t, group.GroupTotal.Equal(decimal.RequireFromString("9")))

	// 9.00 for the pack counted once plus 2 x 1.00 standalone.
	assert.True(t, view.Total.Equal(decimal.RequireFromString("11")), "total was %s", view.Total)
}

func TestAddPackAgainIncrementsGroupQuantity(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	a := f.seedProduct(t, "bread", "2.00", 10)
	b := f.seedProduct(t, "cheese", "5.00", 10)
	pack := f.seedFixedPack(t, "picnic", "9.00", a.ID, b.ID)

	_, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)
	view, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)

	require.Len(t, view.Groups, 1)
	assert.Equal(t, 2, view.Groups[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("18")), "total was %s", view.Total)

	var rows []models.CartItem
	require.NoError(t, f.db.Where("user_id = ?", userID).Find(&rows).Error)
	for _, row := range rows {
		assert.Equal(t, 2, row.Quantity)
	}
}

func TestAddPackInsufficientStockListsEveryShortProduct(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	a := f.seedProduct(t, "bread", "2.00", 0)
	b := f.seedProduct(t, "cheese", "5.00", 0)
	pack := f.seedFixedPack(t, "picnic", "9.00", a.ID, b.ID)

	_, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	short, ok := details["products"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, short, 2)

	view, err := f.svc.LoadCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Groups)
}

func TestUpdateQuantityBelowOneRemovesLine(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	product := f.seedProduct(t, "milk", "1.50", 10)

	view, err := f.svc.AddItem(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	itemID := view.Items[0].ItemID

	view, err = f.svc.UpdateQuantity(ctx, userID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestUpdateQuantityOnPackLineSynchronizesGroup(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	a := f.seedProduct(t, "bread", "2.00", 10)
	b := f.seedProduct(t, "cheese", "5.00", 10)
	pack := f.seedFixedPack(t, "picnic", "9.00", a.ID, b.ID)

	view, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)
	itemID := view.Groups[0].Items[0].ItemID

	view, err = f.svc.UpdateQuantity(ctx, userID, itemID, 3)
	require.NoError(t, err)
	require.Len(t, view.Groups, 1)
	assert.Equal(t, 3, view.Groups[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("27")), "total was %s", view.Total)
}

func TestRemovePackLineRemovesWholeGroup(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	a := f.seedProduct(t, "bread", "2.00", 10)
	b := f.seedProduct(t, "cheese", "5.00", 10)
	pack := f.seedFixedPack(t, "picnic", "9.00", a.ID, b.ID)
	loose := f.seedProduct(t, "water", "1.00", 10)

	_, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)
	view, err := f.svc.AddItem(ctx, userID, loose.ID, 1)
	require.NoError(t, err)

	itemID := view.Groups[0].Items[0].ItemID
	view, err = f.svc.RemoveItem(ctx, userID, itemID)
	require.NoError(t, err)

	assert.Empty(t, view.Groups)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("1")))
}

func TestClearEmptiesCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	product := f.seedProduct(t, "milk", "1.50", 10)
	_, err := f.svc.AddItem(ctx, userID, product.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, other, product.ID, 1)
	require.NoError(t, err)

	view, err := f.svc.Clear(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	otherView, err := f.svc.LoadCart(ctx, other)
	require.NoError(t, err)
	assert.Len(t, otherView.Items, 1)
}

func TestAddPackCountsUnitsPerInstanceAgainstStock(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	eggs := f.seedProduct(t, "eggs", "0.50", 5)
	pack := models.Pack{ID: uuid.New(), Name: "omelette kit", Price: decimal.RequireFromString("4.00"), IsActive: true}
	require.NoError(t, f.db.Create(&pack).Error)
	f.seedPackLine(t, pack.ID, eggs.ID, 3)

	// One instance needs 3 units of a 5 unit stock.
	view, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)
	require.Len(t, view.Groups, 1)
	require.Len(t, view.Groups[0].Items, 1)
	assert.Equal(t, 3, view.Groups[0].Items[0].UnitCount)

	// A second instance would need 6 units.
	_, err = f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	short, ok := details["products"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, short, 1)
	assert.Equal(t, 6, short[0]["requested"])
	assert.Equal(t, 5, short[0]["available"])
}

func TestUpdateQuantityOnPackLineCountsUnits(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	eggs := f.seedProduct(t, "eggs", "0.50", 7)
	pack := models.Pack{ID: uuid.New(), Name: "omelette kit", Price: decimal.RequireFromString("4.00"), IsActive: true}
	require.NoError(t, f.db.Create(&pack).Error)
	f.seedPackLine(t, pack.ID, eggs.ID, 3)

	view, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)
	itemID := view.Groups[0].Items[0].ItemID

	view, err = f.svc.UpdateQuantity(ctx, userID, itemID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Groups[0].Quantity)

	// Three instances would need 9 units of a 7 unit stock.
	_, err = f.svc.UpdateQuantity(ctx, userID, itemID, 3)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
}

func TestLoadCartRepeatedLoadsReturnSameTotal(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	a := f.seedProduct(t, "bread", "2.00", 10)
	b := f.seedProduct(t, "cheese", "5.00", 10)
	pack := f.seedFixedPack(t, "picnic", "9.00", a.ID, b.ID)
	loose := f.seedProduct(t, "water", "1.00", 10)

	_, err := f.svc.AddPack(ctx, userID, pack.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, userID, loose.ID, 2)
	require.NoError(t, err)

	first, err := f.svc.LoadCart(ctx, userID)
	require.NoError(t, err)
	second, err := f.svc.LoadCart(ctx, userID)
	require.NoError(t, err)

	assert.True(t, first.Total.Equal(second.Total), "totals diverged: %s vs %s", first.Total, second.Total)
	assert.True(t, first.Total.Equal(decimal.RequireFromString("11")), "total was %s", first.Total)
	require.Len(t, second.Groups, 1)
	assert.Equal(t, first.Groups[0].Quantity, second.Groups[0].Quantity)
	assert.Len(t, second.Items, 1)
}

func TestRemoveItemUnknownIDNotFound(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.RemoveItem(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
