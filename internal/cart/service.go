package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/internal/packs"
	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

// Service defines the cart operations. Every mutation returns the fresh cart
// view so clients never render from stale state.
type Service interface {
	LoadCart(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error)
	AddPack(ctx context.Context, userID, packID uuid.UUID, selections packs.Selections) (*View, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	RemovePack(ctx context.Context, userID, packID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) (*View, error)
}

type cartRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	FindStandalone(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error)
	FindByID(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error)
	ListGroup(ctx context.Context, userID, packID uuid.UUID) ([]models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	CreateBatch(ctx context.Context, items []models.CartItem) error
	UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	SetGroupQuantity(ctx context.Context, userID, packID uuid.UUID, quantity int) error
	Delete(ctx context.Context, userID, itemID uuid.UUID) error
	DeleteGroup(ctx context.Context, userID, packID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	WithTx(tx *gorm.DB) *Repository
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type txManager interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     cartRepository
	products productLoader
	expander packs.Expander
	tx       txManager
}

// NewService constructs the cart service.
func NewService(repo cartRepository, products productLoader, expander packs.Expander, tx txManager) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	if expander == nil {
		return nil, fmt.Errorf("pack expander is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	return &service{repo: repo, products: products, expander: expander, tx: tx}, nil
}

func (s *service) LoadCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	return s.reload(ctx, userID)
}

// AddItem adds a standalone product line, merging into an existing line for
// the same product instead of duplicating it.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	existing, err := s.repo.FindStandalone(ctx, userID, productID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up cart line")
	}

	needed := quantity
	if existing != nil {
		needed += existing.Quantity
	}
	if needed > product.Stock {
		return nil, insufficientStock(product, needed)
	}

	if existing != nil {
		if err := s.repo.UpdateQuantity(ctx, existing.ID, needed); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart line")
		}
		return s.reload(ctx, userID)
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart line")
	}
	return s.reload(ctx, userID)
}

// AddPack expands a pack and inserts the whole group atomically. Adding the
// same pack with the same composition again bumps the group quantity instead
// of creating a second group.
func (s *service) AddPack(ctx context.Context, userID, packID uuid.UUID, selections packs.Selections) (*View, error) {
	expansion, err := s.expander.Expand(ctx, packID, selections)
	if err != nil {
		return nil, err
	}

	group, err := s.repo.ListGroup(ctx, userID, packID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack group")
	}

	newQuantity := 1
	if len(group) > 0 {
		if !sameComposition(group, expansion.Lines) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "pack already in cart with a different selection")
		}
		newQuantity = group[0].Quantity + 1
	}

	if err := s.checkGroupStock(ctx, expansion.Lines, newQuantity); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if len(group) > 0 {
			return txRepo.SetGroupQuantity(ctx, userID, packID, newQuantity)
		}
		rows := make([]models.CartItem, 0, len(expansion.Lines))
		for _, line := range expansion.Lines {
			share := line.UnitShare
			rows = append(rows, models.CartItem{
				UserID:        userID,
				ProductID:     line.ProductID,
				Quantity:      newQuantity,
				UnitCount:     lineUnits(line),
				PackID:        &packID,
				PackUnitPrice: &share,
				IsFixed:       line.IsFixed,
			})
		}
		return txRepo.CreateBatch(ctx, rows)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist pack group")
	}
	return s.reload(ctx, userID)
}

// UpdateQuantity sets a line's quantity; a pack line updates the whole group
// so member rows stay synchronized. Quantities below 1 remove the line.
func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error) {
	item, err := s.repo.FindByID(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart line")
	}

	if quantity < 1 {
		return s.removeLoaded(ctx, userID, item)
	}

	if item.PackID != nil {
		group, err := s.repo.ListGroup(ctx, userID, *item.PackID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack group")
		}
		lines := make([]packs.Line, 0, len(group))
		for _, row := range group {
			lines = append(lines, packs.Line{ProductID: row.ProductID, Quantity: row.UnitCount})
		}
		if err := s.checkGroupStock(ctx, lines, quantity); err != nil {
			return nil, err
		}
		if err := s.repo.SetGroupQuantity(ctx, userID, *item.PackID, quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update pack group")
		}
		return s.reload(ctx, userID)
	}

	product, err := s.products.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if quantity > product.Stock {
		return nil, insufficientStock(product, quantity)
	}
	if err := s.repo.UpdateQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart line")
	}
	return s.reload(ctx, userID)
}

// RemoveItem deletes a line. Removing any line of a pack removes the whole
// group: a partial pack is not a valid cart state.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	item, err := s.repo.FindByID(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart line")
	}
	return s.removeLoaded(ctx, userID, item)
}

func (s *service) RemovePack(ctx context.Context, userID, packID uuid.UUID) (*View, error) {
	if err := s.repo.DeleteGroup(ctx, userID, packID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove pack group")
	}
	return s.reload(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*View, error) {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return s.reload(ctx, userID)
}

func (s *service) removeLoaded(ctx context.Context, userID uuid.UUID, item *models.CartItem) (*View, error) {
	if item.PackID != nil {
		if err := s.repo.DeleteGroup(ctx, userID, *item.PackID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove pack group")
		}
	} else {
		if err := s.repo.Delete(ctx, userID, item.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line")
		}
	}
	return s.reload(ctx, userID)
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*View, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return buildView(rows), nil
}

// checkGroupStock verifies every product in a pack group can cover the group
// quantity, reporting all shortfalls at once.
func (s *service) checkGroupStock(ctx context.Context, lines []packs.Line, quantity int) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var short []map[string]any
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pack product not found")
		}
		needed := quantity * lineUnits(line)
		if needed > product.Stock {
			short = append(short, map[string]any{
				"product_id": product.ID,
				"name":       product.Name,
				"requested":  needed,
				"available":  product.Stock,
			})
		}
	}
	if len(short) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for pack contents").
			WithDetails(map[string]any{"products": short})
	}
	return nil
}

// lineUnits normalizes a pack line's per-instance unit count.
func lineUnits(line packs.Line) int {
	if line.Quantity < 1 {
		return 1
	}
	return line.Quantity
}

func insufficientStock(product *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": product.ID,
			"name":       product.Name,
			"requested":  requested,
			"available":  product.Stock,
		})
}

// sameComposition reports whether the existing group rows cover exactly the
// same product set as a fresh expansion.
func sameComposition(group []models.CartItem, lines []packs.Line) bool {
	if len(group) != len(lines) {
		return false
	}
	have := make(map[uuid.UUID]bool, len(group))
	for _, row := range group {
		have[row.ProductID] = true
	}
	for _, line := range lines {
		if !have[line.ProductID] {
			return false
		}
	}
	return true
}
