package packs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
	"github.com/epicerie-app/epicerie-backend/pkg/pagination"
)

// Expansion is the result of resolving a pack against a set of selections.
type Expansion struct {
	Pack  *models.Pack
	Lines []Line
}

// Service defines the pack expansion surface.
type Service interface {
	List(ctx context.Context, params pagination.Params) ([]models.Pack, string, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Pack, error)
	Expand(ctx context.Context, packID uuid.UUID, selections Selections) (*Expansion, error)
}

// Expander is the narrow surface the cart service depends on.
type Expander interface {
	Expand(ctx context.Context, packID uuid.UUID, selections Selections) (*Expansion, error)
}

type packRepository interface {
	List(ctx context.Context, params pagination.Params) ([]models.Pack, string, error)
	GetWithContents(ctx context.Context, id uuid.UUID) (*models.Pack, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo packRepository
}

// NewService constructs a pack service with the provided repository.
func NewService(repo packRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pack repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.Pack, string, error) {
	packs, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list packs")
	}
	return packs, next, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Pack, error) {
	pack, err := s.repo.GetWithContents(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack")
	}
	if !pack.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
	}
	return pack, nil
}

// Expand resolves a pack into concrete cart lines. It is read-only: the cart
// service owns persistence of the result.
//
// Legacy packs (no customization slots) expand to their fixed lines with nil
// selections. Packs with slots require a selection set that fills every slot
// exactly; any deficit or surplus fails validation, and the error names every
// incomplete slot rather than just the first one.
func (s *service) Expand(ctx context.Context, packID uuid.UUID, selections Selections) (*Expansion, error) {
	pack, err := s.Get(ctx, packID)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(pack.Products))
	seen := make(map[uuid.UUID]bool, len(pack.Products))
	for _, pp := range pack.Products {
		if !pp.IsFixed {
			continue
		}
		if seen[pp.ProductID] {
			continue
		}
		seen[pp.ProductID] = true
		quantity := pp.Quantity
		if quantity < 1 {
			quantity = 1
		}
		lines = append(lines, Line{ProductID: pp.ProductID, Quantity: quantity, IsFixed: true})
	}

	if len(pack.Categories) > 0 {
		selected, err := s.resolveSelections(ctx, pack, selections)
		if err != nil {
			return nil, err
		}
		for _, pick := range selected {
			if seen[pick.ProductID] {
				continue
			}
			seen[pick.ProductID] = true
			lines = append(lines, Line{ProductID: pick.ProductID, Quantity: pick.Quantity, IsFixed: false})
		}
	} else if len(selections) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pack does not accept customization")
	}

	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pack has no contents")
	}

	// Even split: every line carries price/lineCount, so a group of lines
	// always reassembles into exactly one pack price at the group level.
	share := pack.Price.Div(decimal.NewFromInt(int64(len(lines))))
	for i := range lines {
		lines[i].UnitShare = share
	}

	return &Expansion{Pack: pack, Lines: lines}, nil
}

// resolveSelections validates the picks against every slot and returns the
// ordered list of distinct selected products with merged quantities.
func (s *service) resolveSelections(ctx context.Context, pack *models.Pack, selections Selections) ([]ProductQty, error) {
	var productIDs []uuid.UUID
	for _, picks := range selections {
		for _, pick := range picks {
			productIDs = append(productIDs, pick.ProductID)
		}
	}

	productsByID := make(map[uuid.UUID]models.Product, len(productIDs))
	if len(productIDs) > 0 {
		products, err := s.repo.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load selected products")
		}
		for _, p := range products {
			productsByID[p.ID] = p
		}
	}

	var incomplete []IncompleteCategory
	var selected []ProductQty
	position := make(map[uuid.UUID]int)
	for _, slot := range pack.Categories {
		picks := selections[slot.ID]
		filled := 0
		for _, pick := range picks {
			if pick.Quantity < 1 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection quantity must be at least 1")
			}
			product, ok := productsByID[pick.ProductID]
			if !ok || !product.IsActive {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("selected product %s not found", pick.ProductID))
			}
			if product.CategoryID != slot.CategoryID {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %q does not belong to the required category", product.Name))
			}
			filled += pick.Quantity
			if idx, ok := position[pick.ProductID]; ok {
				selected[idx].Quantity += pick.Quantity
			} else {
				position[pick.ProductID] = len(selected)
				selected = append(selected, ProductQty{ProductID: pick.ProductID, Quantity: pick.Quantity})
			}
		}
		if filled != slot.ProductsCount {
			name := ""
			if slot.Category != nil {
				name = slot.Category.Name
			}
			incomplete = append(incomplete, IncompleteCategory{
				CategoryID:   slot.CategoryID,
				CategoryName: name,
				Required:     slot.ProductsCount,
				Selected:     filled,
			})
		}
	}

	if len(incomplete) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pack selection incomplete").
			WithDetails(map[string]any{"incomplete_categories": incomplete})
	}

	return selected, nil
}
