package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/internal/cart"
	"github.com/epicerie-app/epicerie-backend/internal/catalog"
	"github.com/epicerie-app/epicerie-backend/internal/orders"
	"github.com/epicerie-app/epicerie-backend/internal/sharedorder"
	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	"github.com/epicerie-app/epicerie-backend/pkg/enums"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

// Quote is the priced snapshot returned before an intent is created.
type Quote struct {
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
}

// IntentView is the client-facing payment intent.
type IntentView struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
}

// Service runs checkout for personal carts and shared orders: quote, create
// a payment intent, and confirm once the intent succeeded.
type Service interface {
	QuoteCart(ctx context.Context, userID uuid.UUID) (*Quote, error)
	QuoteSharedOrder(ctx context.Context, orderID, userID uuid.UUID) (*Quote, error)
	CreateCartIntent(ctx context.Context, userID uuid.UUID) (*IntentView, error)
	CreateSharedOrderIntent(ctx context.Context, orderID, userID uuid.UUID) (*IntentView, error)
	ConfirmCart(ctx context.Context, userID uuid.UUID, intentID string) error
	ConfirmSharedOrder(ctx context.Context, orderID, userID uuid.UUID, intentID string) error
}

type cartReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	WithTx(tx *gorm.DB) *cart.Repository
}

type cartViewer interface {
	LoadCart(ctx context.Context, userID uuid.UUID) (*cart.View, error)
}

type orderService interface {
	Totals(ctx context.Context, orderID, userID uuid.UUID) (*sharedorder.TotalsView, error)
	Get(ctx context.Context, orderID uuid.UUID) (*sharedorder.OrderView, error)
	Complete(ctx context.Context, orderID, userID uuid.UUID) (*sharedorder.OrderView, error)
}

type stockDecrementer interface {
	WithTx(tx *gorm.DB) *catalog.Repository
}

type orderWriter interface {
	WithTx(tx *gorm.DB) *orders.Repository
}

type txManager interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	gateway  PaymentGateway
	cartRows cartReader
	cartView cartViewer
	orders   orderService
	catalog  stockDecrementer
	history  orderWriter
	tx       txManager
	currency string
}

// NewService constructs the checkout service. currency is the ISO code every
// intent is created in.
func NewService(gateway PaymentGateway, cartRows cartReader, cartView cartViewer, orderSvc orderService, catalogRepo stockDecrementer, history orderWriter, tx txManager, currency string) (Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	if cartRows == nil {
		return nil, fmt.Errorf("cart reader is required")
	}
	if cartView == nil {
		return nil, fmt.Errorf("cart viewer is required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("shared order service is required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if history == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if currency == "" {
		return nil, fmt.Errorf("currency is required")
	}
	return &service{
		gateway:  gateway,
		cartRows: cartRows,
		cartView: cartView,
		orders:   orderSvc,
		catalog:  catalogRepo,
		history:  history,
		tx:       tx,
		currency: currency,
	}, nil
}

func (s *service) QuoteCart(ctx context.Context, userID uuid.UUID) (*Quote, error) {
	view, err := s.cartView.LoadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view.Total.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return s.quoteFromAmount(view.Total), nil
}

func (s *service) QuoteSharedOrder(ctx context.Context, orderID, userID uuid.UUID) (*Quote, error) {
	totals, err := s.orders.Totals(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if totals.Total.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shared order has no items")
	}
	return s.quoteFromAmount(totals.Total), nil
}

func (s *service) CreateCartIntent(ctx context.Context, userID uuid.UUID) (*IntentView, error) {
	quote, err := s.QuoteCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.createIntent(ctx, quote, map[string]string{
		"kind":    "cart",
		"user_id": userID.String(),
	})
}

func (s *service) CreateSharedOrderIntent(ctx context.Context, orderID, userID uuid.UUID) (*IntentView, error) {
	quote, err := s.QuoteSharedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return s.createIntent(ctx, quote, map[string]string{
		"kind":            "shared_order",
		"shared_order_id": orderID.String(),
		"user_id":         userID.String(),
	})
}

// ConfirmCart finalizes a personal checkout. The intent must have succeeded,
// must have been created for this user's cart, and must cover the cart's
// current total; then stock is decremented, the order history row is written,
// and the cart cleared in one transaction.
func (s *service) ConfirmCart(ctx context.Context, userID uuid.UUID, intentID string) error {
	intent, err := s.requireSucceededIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if err := verifyIntentOwnership(intent, "cart", userID, nil); err != nil {
		return err
	}

	view, err := s.cartView.LoadCart(ctx, userID)
	if err != nil {
		return err
	}
	if view.Total.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := s.verifyIntentAmount(intent, view.Total); err != nil {
		return err
	}

	rows, err := s.cartRows.ListByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(rows) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	order := s.orderFromCart(userID, intent.ID, view.Total, rows)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCatalog := s.catalog.WithTx(tx)
		for _, row := range rows {
			if err := txCatalog.DecrementStock(ctx, row.ProductID, row.Units()); err != nil {
				return stockError(err, row.ProductID)
			}
		}
		if err := s.history.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.cartRows.WithTx(tx).DeleteByUser(ctx, userID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize checkout")
	}
	return nil
}

// ConfirmSharedOrder finalizes a shared order: verifies the payment belongs
// to this order and covers its current total, decrements stock for every
// contributed line, records the order, and completes it. Completion is
// creator-only, which Complete enforces.
func (s *service) ConfirmSharedOrder(ctx context.Context, orderID, userID uuid.UUID, intentID string) error {
	intent, err := s.requireSucceededIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if err := verifyIntentOwnership(intent, "shared_order", userID, &orderID); err != nil {
		return err
	}

	totals, err := s.orders.Totals(ctx, orderID, userID)
	if err != nil {
		return err
	}
	if err := s.verifyIntentAmount(intent, totals.Total); err != nil {
		return err
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}

	record := s.orderFromSharedOrder(userID, intent.ID, totals.Total, order)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCatalog := s.catalog.WithTx(tx)
		for _, item := range order.Items {
			units := item.Quantity
			if item.UnitCount > 1 {
				units = item.Quantity * item.UnitCount
			}
			if err := txCatalog.DecrementStock(ctx, item.ProductID, units); err != nil {
				return stockError(err, item.ProductID)
			}
		}
		return s.history.WithTx(tx).Create(ctx, record)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize shared order")
	}

	_, err = s.orders.Complete(ctx, orderID, userID)
	return err
}

func (s *service) createIntent(ctx context.Context, quote *Quote, metadata map[string]string) (*IntentView, error) {
	intent, err := s.gateway.CreateIntent(ctx, quote.AmountMinor, quote.Currency, metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return &IntentView{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  intent.AmountMinor,
		Currency:     intent.Currency,
	}, nil
}

func (s *service) requireSucceededIntent(ctx context.Context, intentID string) (*Intent, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	if !intent.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not succeeded").
			WithDetails(map[string]any{"status": intent.Status})
	}
	return intent, nil
}

// verifyIntentOwnership checks the metadata stamped at intent creation: the
// intent must have been created for this kind of checkout, by this user, and
// for shared orders, for this order.
func verifyIntentOwnership(intent *Intent, kind string, userID uuid.UUID, orderID *uuid.UUID) error {
	if intent.Metadata["kind"] != kind || intent.Metadata["user_id"] != userID.String() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment intent does not belong to this checkout")
	}
	if orderID != nil && intent.Metadata["shared_order_id"] != orderID.String() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment intent does not belong to this checkout")
	}
	return nil
}

// verifyIntentAmount rejects an intent whose charged amount no longer covers
// the total, e.g. after lines were added since the intent was created.
func (s *service) verifyIntentAmount(intent *Intent, total decimal.Decimal) error {
	quote := s.quoteFromAmount(total)
	if intent.AmountMinor != quote.AmountMinor {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment amount does not match the current total").
			WithDetails(map[string]any{
				"paid_minor": intent.AmountMinor,
				"due_minor":  quote.AmountMinor,
			})
	}
	return nil
}

// orderFromCart freezes the cart into an order history row. Pack lines carry
// their share of the pack price; the stored total is the cart view total, so
// it stays consistent with the group-before-sum pricing rule.
func (s *service) orderFromCart(userID uuid.UUID, intentID string, total decimal.Decimal, rows []models.CartItem) *models.Order {
	groupSizes := make(map[uuid.UUID]int)
	for _, row := range rows {
		if row.PackID != nil {
			groupSizes[*row.PackID]++
		}
	}

	order := &models.Order{
		UserID:          userID,
		Status:          enums.OrderStatusConfirmed,
		Total:           total,
		Currency:        s.currency,
		PaymentIntentID: intentID,
		Items:           make([]models.OrderItem, 0, len(rows)),
	}
	for _, row := range rows {
		item := models.OrderItem{
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			UnitCount: row.UnitCount,
			PackID:    row.PackID,
		}
		if item.UnitCount < 1 {
			item.UnitCount = 1
		}
		if row.Product != nil {
			item.Name = row.Product.Name
			item.UnitPrice = row.Product.Price
		}
		if row.PackID != nil {
			// Freeze the pack line at the even split of the current price,
			// not at the share stored when the line entered the cart.
			if row.Pack != nil {
				item.UnitPrice = row.Pack.Price.Div(decimal.NewFromInt(int64(groupSizes[*row.PackID])))
				name := row.Pack.Name
				item.PackName = &name
			} else if row.PackUnitPrice != nil {
				item.UnitPrice = *row.PackUnitPrice
			}
		}
		order.Items = append(order.Items, item)
	}
	return order
}

func (s *service) orderFromSharedOrder(userID uuid.UUID, intentID string, total decimal.Decimal, view *sharedorder.OrderView) *models.Order {
	sharedID := view.ID
	order := &models.Order{
		UserID:          userID,
		Status:          enums.OrderStatusConfirmed,
		Total:           total,
		Currency:        s.currency,
		PaymentIntentID: intentID,
		SharedOrderID:   &sharedID,
		Items:           make([]models.OrderItem, 0, len(view.Items)),
	}
	for _, item := range view.Items {
		line := models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			UnitCount: item.UnitCount,
			PackID:    item.PackID,
		}
		if line.UnitCount < 1 {
			line.UnitCount = 1
		}
		if item.PackName != "" {
			name := item.PackName
			line.PackName = &name
		}
		order.Items = append(order.Items, line)
	}
	return order
}

func (s *service) quoteFromAmount(amount decimal.Decimal) *Quote {
	return &Quote{
		Amount:      amount,
		AmountMinor: amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:    s.currency,
	}
}

func stockError(err error, productID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock at confirmation").
			WithDetails(map[string]any{"product_id": productID})
	}
	return err
}
