package favorites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/internal/cart"
	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
	"github.com/epicerie-app/epicerie-backend/pkg/types"
)

// FavoriteItemView is one snapshot entry resolved against live data.
type FavoriteItemView struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	PackID    *uuid.UUID `json:"pack_id,omitempty"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	Available bool       `json:"available"`
}

// FavoriteView is a favorite order with its entries resolved.
type FavoriteView struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Items     []FavoriteItemView `json:"items"`
	CreatedAt time.Time          `json:"created_at"`
}

// SkippedItem explains why one favorite entry could not be replayed.
type SkippedItem struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	PackID    *uuid.UUID `json:"pack_id,omitempty"`
	Reason    string     `json:"reason"`
}

// ReorderResult is the outcome of replaying a favorite: the fresh cart plus a
// tally of what could not be added.
type ReorderResult struct {
	Cart    *cart.View    `json:"cart"`
	Added   int           `json:"added"`
	Skipped []SkippedItem `json:"skipped"`
}

// Service manages favorite orders and their replay into the cart.
type Service interface {
	SaveFromCart(ctx context.Context, userID uuid.UUID, name string) (*FavoriteView, error)
	List(ctx context.Context, userID uuid.UUID) ([]FavoriteView, error)
	Reorder(ctx context.Context, userID, favoriteID uuid.UUID) (*ReorderResult, error)
	Delete(ctx context.Context, userID, favoriteID uuid.UUID) error
}

type favoriteRepository interface {
	Create(ctx context.Context, favorite *models.FavoriteOrder) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.FavoriteOrder, error)
	FindByID(ctx context.Context, userID, favoriteID uuid.UUID) (*models.FavoriteOrder, error)
	Delete(ctx context.Context, userID, favoriteID uuid.UUID) error
}

type cartReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

type productLoader interface {
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type packLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Pack, error)
}

type service struct {
	repo     favoriteRepository
	cartRows cartReader
	cartSvc  cart.Service
	products productLoader
	packSvc  packLoader
}

// NewService constructs the favorites service.
func NewService(repo favoriteRepository, cartRows cartReader, cartSvc cart.Service, products productLoader, packSvc packLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("favorites repository is required")
	}
	if cartRows == nil {
		return nil, fmt.Errorf("cart reader is required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service is required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	if packSvc == nil {
		return nil, fmt.Errorf("pack loader is required")
	}
	return &service{repo: repo, cartRows: cartRows, cartSvc: cartSvc, products: products, packSvc: packSvc}, nil
}

// SaveFromCart snapshots the current cart as a named favorite. Pack groups
// collapse to a single pack reference with the group quantity; the concrete
// selection is not stored and is re-made on replay.
func (s *service) SaveFromCart(ctx context.Context, userID uuid.UUID, name string) (*FavoriteView, error) {
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "favorite name is required")
	}

	rows, err := s.cartRows.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var items types.FavoriteItems
	seenPacks := make(map[uuid.UUID]bool)
	for _, row := range rows {
		if row.PackID != nil {
			if seenPacks[*row.PackID] {
				continue
			}
			seenPacks[*row.PackID] = true
			packID := *row.PackID
			items = append(items, types.FavoriteItemSnapshot{PackID: &packID, Quantity: row.Quantity})
			continue
		}
		productID := row.ProductID
		items = append(items, types.FavoriteItemSnapshot{ProductID: &productID, Quantity: row.Quantity})
	}

	favorite := &models.FavoriteOrder{
		UserID: userID,
		Name:   name,
		Items:  items,
	}
	if err := s.repo.Create(ctx, favorite); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save favorite")
	}

	view, err := s.resolve(ctx, favorite)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]FavoriteView, error) {
	favorites, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list favorites")
	}

	views := make([]FavoriteView, 0, len(favorites))
	for i := range favorites {
		view, err := s.resolve(ctx, &favorites[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// Reorder replays a favorite against live data. Entries that no longer
// resolve are skipped with a reason rather than failing the whole replay;
// only a replay that adds nothing at all is an error.
func (s *service) Reorder(ctx context.Context, userID, favoriteID uuid.UUID) (*ReorderResult, error) {
	favorite, err := s.repo.FindByID(ctx, userID, favoriteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "favorite not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load favorite")
	}

	result := &ReorderResult{Skipped: []SkippedItem{}}
	var skipErrs error

	for _, snapshot := range favorite.Items {
		switch {
		case snapshot.ProductID != nil:
			_, err := s.cartSvc.AddItem(ctx, userID, *snapshot.ProductID, snapshot.Quantity)
			if err != nil {
				result.Skipped = append(result.Skipped, SkippedItem{ProductID: snapshot.ProductID, Reason: skipReason(err)})
				skipErrs = multierr.Append(skipErrs, err)
				continue
			}
			result.Added++
		case snapshot.PackID != nil:
			if err := s.replayPack(ctx, userID, *snapshot.PackID, snapshot.Quantity); err != nil {
				result.Skipped = append(result.Skipped, SkippedItem{PackID: snapshot.PackID, Reason: skipReason(err)})
				skipErrs = multierr.Append(skipErrs, err)
				continue
			}
			result.Added++
		default:
			result.Skipped = append(result.Skipped, SkippedItem{Reason: "empty reference"})
		}
	}

	if result.Added == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, multierr.Combine(skipErrs), "no favorite items could be added")
	}

	view, err := s.cartSvc.LoadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Cart = view
	return result, nil
}

func (s *service) Delete(ctx context.Context, userID, favoriteID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, favoriteID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete favorite")
	}
	return nil
}

// replayPack re-adds a pack snapshot. Packs with customization slots cannot
// be replayed from ids alone, so they are reported back to the shopper.
func (s *service) replayPack(ctx context.Context, userID, packID uuid.UUID, quantity int) error {
	pack, err := s.packSvc.Get(ctx, packID)
	if err != nil {
		return err
	}
	if len(pack.Categories) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "pack requires customization")
	}
	if quantity < 1 {
		quantity = 1
	}
	for i := 0; i < quantity; i++ {
		if _, err := s.cartSvc.AddPack(ctx, userID, packID, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) resolve(ctx context.Context, favorite *models.FavoriteOrder) (*FavoriteView, error) {
	var productIDs []uuid.UUID
	for _, snapshot := range favorite.Items {
		if snapshot.ProductID != nil {
			productIDs = append(productIDs, *snapshot.ProductID)
		}
	}

	productsByID := make(map[uuid.UUID]models.Product)
	if len(productIDs) > 0 {
		products, err := s.products.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve favorite products")
		}
		for _, p := range products {
			productsByID[p.ID] = p
		}
	}

	view := &FavoriteView{
		ID:        favorite.ID,
		Name:      favorite.Name,
		Items:     make([]FavoriteItemView, 0, len(favorite.Items)),
		CreatedAt: favorite.CreatedAt,
	}
	for _, snapshot := range favorite.Items {
		item := FavoriteItemView{
			ProductID: snapshot.ProductID,
			PackID:    snapshot.PackID,
			Quantity:  snapshot.Quantity,
		}
		switch {
		case snapshot.ProductID != nil:
			if product, ok := productsByID[*snapshot.ProductID]; ok {
				item.Name = product.Name
				item.Available = product.IsActive && product.Stock > 0
			}
		case snapshot.PackID != nil:
			if pack, err := s.packSvc.Get(ctx, *snapshot.PackID); err == nil {
				item.Name = pack.Name
				item.Available = true
			}
		}
		view.Items = append(view.Items, item)
	}
	return view, nil
}

func skipReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeNotFound:
			return "no longer available"
		case pkgerrors.CodeInsufficientStock:
			return "insufficient stock"
		case pkgerrors.CodeValidation:
			return typed.Message()
		}
	}
	return "could not be added"
}
