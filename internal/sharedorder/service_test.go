package sharedorder

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

	"github.com/epicerie-app/epicerie-backend/internal/cart"
	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	"github.com/epicerie-app/epicerie-backend/pkg/enums"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

type gormTxManager struct {
	db *gorm.DB
}

func (m gormTxManager) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

func setupSharedOrderTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
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
		`CREATE TABLE IF NOT EXISTS shared_orders (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  creator_id TEXT NOT NULL,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','completed')),
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS shared_order_participants (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  shared_order_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'participant',
  created_at DATETIME,
  UNIQUE (shared_order_id, user_id)
);`,
		`CREATE TABLE IF NOT EXISTS shared_order_items (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  shared_order_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_count INTEGER NOT NULL DEFAULT 1,
  pack_id TEXT,
  pack_unit_price NUMERIC,
  created_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type orderFixture struct {
	db  *gorm.DB
	svc Service
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	db := setupSharedOrderTestDB(t)
	svc, err := NewService(NewRepository(db), cart.NewRepository(db), gormTxManager{db: db}, 24*time.Hour)
	require.NoError(t, err)
	return &orderFixture{db: db, svc: svc}
}

func (f *orderFixture) setNow(now time.Time) {
	f.svc.(*service).now = func() time.Time { return now }
}

func (f *orderFixture) seedProduct(t *testing.T, name, price string) models.Product {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		CategoryID: uuid.New(),
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      100,
		IsActive:   true,
	}
	require.NoError(t, f.db.Create(&product).Error)
	return product
}

func (f *orderFixture) seedCartLine(t *testing.T, userID, productID uuid.UUID, quantity int) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}).Error)
}

func (f *orderFixture) seedPackCartGroup(t *testing.T, userID uuid.UUID, packName, packPrice string, quantity int, productIDs ...uuid.UUID) models.Pack {
	t.Helper()
	pack := models.Pack{
		ID:       uuid.New(),
		Name:     packName,
		Price:    decimal.RequireFromString(packPrice),
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&pack).Error)
	share := pack.Price.Div(decimal.NewFromInt(int64(len(productIDs))))
	for _, productID := range productIDs {
		lineShare := share
		require.NoError(t, f.db.Create(&models.CartItem{
			ID:            uuid.New(),
			UserID:        userID,
			ProductID:     productID,
			Quantity:      quantity,
			PackID:        &pack.ID,
			PackUnitPrice: &lineShare,
		}).Error)
	}
	return pack
}

func TestCreateFromCartRequiresNonEmptyCart(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.CreateFromCart(context.Background(), uuid.New(), "weekly run")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCreateFromCartCopiesCartAndKeepsIt(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	product := f.seedProduct(t, "flour", "2.20")
	f.seedCartLine(t, creator, product.ID, 3)

	view, err := f.svc.CreateFromCart(ctx, creator, "weekly run")
	require.NoError(t, err)
	assert.Equal(t, enums.SharedOrderStatusActive, view.Status)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, enums.ParticipantRoleOwner, view.Participants[0].Role)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)

	var cartCount int64
	require.NoError(t, f.db.Model(&models.CartItem{}).Where("user_id = ?", creator).Count(&cartCount).Error)
	assert.EqualValues(t, 1, cartCount)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()
	joiner := uuid.New()

	product := f.seedProduct(t, "flour", "2.20")
	f.seedCartLine(t, creator, product.ID, 1)
	view, err := f.svc.CreateFromCart(ctx, creator, "weekly run")
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, view.ID, joiner)
	require.NoError(t, err)
	again, err := f.svc.Join(ctx, view.ID, joiner)
	require.NoError(t, err)
	assert.Len(t, again.Participants, 2)
}

func TestJoinUnknownOrderNotFound(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Join(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestJoinExpiredOrderRejected(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	product := f.seedProduct(t, "flour", "2.20")
	f.seedCartLine(t, creator, product.ID, 1)
	view, err := f.svc.CreateFromCart(ctx, creator, "weekly run")
	require.NoError(t, err)

	f.setNow(time.Now().Add(25 * time.Hour))

	_, err = f.svc.Join(ctx, view.ID, uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeExpired, typed.Code())

	reloaded, err := f.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SharedOrderStatusExpired, reloaded.Status)
}

func TestContributeFromCartRequiresMembership(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()
	stranger := uuid.New()

	product := f.seedProduct(t, "flour", "2.20")
	f.seedCartLine(t, creator, product.ID, 1)
	f.seedCartLine(t, stranger, product.ID, 1)
	view, err := f.svc.CreateFromCart(ctx, creator, "weekly run")
	require.NoError(t, err)

	_, err = f.svc.ContributeFromCart(ctx, view.ID, stranger)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestContributeSameCartTwiceMergesLines(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	bread := f.seedProduct(t, "bread", "2.00")
	cheese := f.seedProduct(t, "cheese", "5.00")
	water := f.seedProduct(t, "water", "1.00")
	f.seedCartLine(t, creator, water.ID, 2)
	f.seedPackCartGroup(t, creator, "picnic", "9.00", 1, bread.ID, cheese.ID)

	view, err := f.svc.CreateFromCart(ctx, creator, "picnic day")
	require.NoError(t, err)
	require.Len(t, view.Items, 3)

	again, err := f.svc.ContributeFromCart(ctx, view.ID, creator)
	require.NoError(t, err)

	// No duplicate rows: the standalone quantity is summed and the pack group
	// instance count is bumped.
	require.Len(t, again.Items, 3)
	for _, item := range again.Items {
		if item.PackID == nil {
			assert.Equal(t, 4, item.Quantity)
		} else {
			assert.Equal(t, 2, item.Quantity)
		}
	}

	totals, err := f.svc.Totals(ctx, view.ID, creator)
	require.NoError(t, err)
	// 2 x 9.00 pack plus 4 x 1.00 water.
	assert.True(t, totals.Total.Equal(decimal.RequireFromString("22")), "total was %s", totals.Total)
}

func TestContributeDifferentPackSelectionConflicts(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	bread := f.seedProduct(t, "bread", "2.00")
	cheese := f.seedProduct(t, "cheese", "5.00")
	olives := f.seedProduct(t, "olives", "3.00")
	pack := f.seedPackCartGroup(t, creator, "picnic", "9.00", 1, bread.ID, cheese.ID)

	view, err := f.svc.CreateFromCart(ctx, creator, "picnic day")
	require.NoError(t, err)

	// Swap the cart's pack composition before contributing again.
	require.NoError(t, f.db.Where("user_id = ? AND pack_id = ?", creator, pack.ID).Delete(&models.CartItem{}).Error)
	share := pack.Price.Div(decimal.NewFromInt(2))
	for _, productID := range []uuid.UUID{bread.ID, olives.ID} {
		lineShare := share
		require.NoError(t, f.db.Create(&models.CartItem{
			ID:            uuid.New(),
			UserID:        creator,
			ProductID:     productID,
			Quantity:      1,
			PackID:        &pack.ID,
			PackUnitPrice: &lineShare,
		}).Error)
	}

	_, err = f.svc.ContributeFromCart(ctx, view.ID, creator)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	reloaded, err := f.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Items, 2)
}

func TestContributedPackShareRecomputedFromCurrentPrice(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	a := f.seedProduct(t, "bread", "2.00")
	b := f.seedProduct(t, "cheese", "5.00")
	pack := f.seedPackCartGroup(t, creator, "picnic", "9.00", 1, a.ID, b.ID)

	// Poison the stored cart shares; the contribution must ignore them.
	stale := decimal.RequireFromString("999")
	require.NoError(t, f.db.Model(&models.CartItem{}).
		Where("user_id = ? AND pack_id = ?", creator, pack.ID).
		Update("pack_unit_price", stale).Error)

	view, err := f.svc.CreateFromCart(ctx, creator, "picnic day")
	require.NoError(t, err)

	var items []models.SharedOrderItem
	require.NoError(t, f.db.Where("shared_order_id = ?", view.ID).Find(&items).Error)
	require.Len(t, items, 2)
	want := decimal.RequireFromString("4.5")
	for _, item := range items {
		require.NotNil(t, item.PackUnitPrice)
		assert.True(t, item.PackUnitPrice.Equal(want), "share was %s", item.PackUnitPrice)
	}
}

func TestTotalsSplitsEvenlyAcrossParticipants(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()
	joiner := uuid.New()

	bread := f.seedProduct(t, "bread", "10.00")
	wine := f.seedProduct(t, "wine", "15.00")
	f.seedCartLine(t, creator, bread.ID, 1)

	view, err := f.svc.CreateFromCart(ctx, creator, "dinner")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, view.ID, joiner)
	require.NoError(t, err)

	f.seedCartLine(t, joiner, wine.ID, 2)
	_, err = f.svc.ContributeFromCart(ctx, view.ID, joiner)
	require.NoError(t, err)

	totals, err := f.svc.Totals(ctx, view.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Participants)
	assert.True(t, totals.Total.Equal(decimal.RequireFromString("40")), "total was %s", totals.Total)
	assert.True(t, totals.IndividualShare.Equal(decimal.RequireFromString("20")), "share was %s", totals.IndividualShare)

	require.Len(t, totals.Subtotals, 2)
	byUser := map[uuid.UUID]decimal.Decimal{}
	for _, st := range totals.Subtotals {
		byUser[st.UserID] = st.Subtotal
	}
	assert.True(t, byUser[creator].Equal(decimal.RequireFromString("10")))
	assert.True(t, byUser[joiner].Equal(decimal.RequireFromString("30")))
}

func TestTotalsPricesPackGroupOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	a := f.seedProduct(t, "bread", "2.00")
	b := f.seedProduct(t, "cheese", "5.00")
	f.seedPackCartGroup(t, creator, "picnic", "9.00", 2, a.ID, b.ID)

	view, err := f.svc.CreateFromCart(ctx, creator, "picnic day")
	require.NoError(t, err)

	totals, err := f.svc.Totals(ctx, view.ID, creator)
	require.NoError(t, err)

	// Two pack instances at 9.00: the product prices never enter the total.
	assert.True(t, totals.Total.Equal(decimal.RequireFromString("18")), "total was %s", totals.Total)
}

func TestCompleteOnlyByCreatorAndBlocksFurtherJoins(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	creator := uuid.New()
	joiner := uuid.New()

	product := f.seedProduct(t, "flour", "2.20")
	f.seedCartLine(t, creator, product.ID, 1)
	view, err := f.svc.CreateFromCart(ctx, creator, "weekly run")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, view.ID, joiner)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, view.ID, joiner)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	done, err := f.svc.Complete(ctx, view.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, enums.SharedOrderStatusCompleted, done.Status)

	_, err = f.svc.Join(ctx, view.ID, uuid.New())
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}
