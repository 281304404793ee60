package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
	"github.com/epicerie-app/epicerie-backend/pkg/pagination"
)

// Service defines the behavior needed by the catalog controllers.
type Service interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListProducts(ctx context.Context, categoryID *uuid.UUID, params pagination.Params) ([]models.Product, string, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type catalogRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListProducts(ctx context.Context, categoryID *uuid.UUID, params pagination.Params) ([]models.Product, string, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo catalogRepository
}

// NewService constructs a catalog service with the provided repository.
func NewService(repo catalogRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	return categories, nil
}

func (s *service) ListProducts(ctx context.Context, categoryID *uuid.UUID, params pagination.Params) ([]models.Product, string, error) {
	products, next, err := s.repo.ListProducts(ctx, categoryID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return products, next, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}
