package addresses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

// AddressInput is the payload for creating or updating an address.
type AddressInput struct {
	Label         string  `json:"label" validate:"required,min=1,max=60"`
	RecipientName string  `json:"recipient_name" validate:"required,min=1,max=120"`
	Street        string  `json:"street" validate:"required,min=1,max=200"`
	Apartment     *string `json:"apartment,omitempty" validate:"omitempty,max=40"`
	Floor         *string `json:"floor,omitempty" validate:"omitempty,max=20"`
	BuildingCode  *string `json:"building_code,omitempty" validate:"omitempty,max=40"`
	City          string  `json:"city" validate:"required,min=1,max=100"`
	PostalCode    string  `json:"postal_code" validate:"required,min=2,max=16"`
	Phone         string  `json:"phone" validate:"required,min=5,max=32"`
	Instructions  *string `json:"instructions,omitempty" validate:"omitempty,max=500"`
	IsDefault     bool    `json:"is_default"`
}

// Service manages saved delivery addresses. The first address a user saves
// becomes the default automatically; at most one default exists at a time.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*models.DeliveryAddress, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.DeliveryAddress, error)
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.DeliveryAddress, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*models.DeliveryAddress, error)
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.DeliveryAddress, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
}

type addressRepository interface {
	Create(ctx context.Context, address *models.DeliveryAddress) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeliveryAddress, error)
	FindByID(ctx context.Context, userID, addressID uuid.UUID) (*models.DeliveryAddress, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Save(ctx context.Context, address *models.DeliveryAddress) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	WithTx(tx *gorm.DB) *Repository
}

type txManager interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo addressRepository
	tx   txManager
}

// NewService constructs the addresses service.
func NewService(repo addressRepository, tx txManager) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*models.DeliveryAddress, error) {
	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count addresses")
	}

	address := addressFromInput(userID, input)
	if count == 0 {
		address.IsDefault = true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if address.IsDefault {
			if err := txRepo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return txRepo.Create(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
	}
	return address, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.DeliveryAddress, error) {
	addresses, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	return addresses, nil
}

func (s *service) Get(ctx context.Context, userID, addressID uuid.UUID) (*models.DeliveryAddress, error) {
	address, err := s.repo.FindByID(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	return address, nil
}

func (s *service) Update(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*models.DeliveryAddress, error) {
	address, err := s.Get(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	wasDefault := address.IsDefault
	updated := addressFromInput(userID, input)
	updated.ID = address.ID
	updated.CreatedAt = address.CreatedAt
	// Dropping the default flag via update would leave the user without a
	// default; keep it until another address takes it over.
	if wasDefault {
		updated.IsDefault = true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if updated.IsDefault && !wasDefault {
			if err := txRepo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return txRepo.Save(ctx, updated)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update address")
	}
	return updated, nil
}

func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.DeliveryAddress, error) {
	address, err := s.Get(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}
	if address.IsDefault {
		return address, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		address.IsDefault = true
		return txRepo.Save(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default address")
	}
	return address, nil
}

func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	address, err := s.Get(ctx, userID, addressID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil
		}
		return err
	}

	if err := s.repo.Delete(ctx, userID, addressID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete address")
	}

	// Promote the newest remaining address when the default was removed.
	if address.IsDefault {
		remaining, err := s.repo.ListByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
		}
		if len(remaining) > 0 {
			next := remaining[0]
			next.IsDefault = true
			if err := s.repo.Save(ctx, &next); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote default address")
			}
		}
	}
	return nil
}

func addressFromInput(userID uuid.UUID, input AddressInput) *models.DeliveryAddress {
	return &models.DeliveryAddress{
		UserID:        userID,
		Label:         input.Label,
		RecipientName: input.RecipientName,
		Street:        input.Street,
		Apartment:     input.Apartment,
		Floor:         input.Floor,
		BuildingCode:  input.BuildingCode,
		City:          input.City,
		PostalCode:    input.PostalCode,
		Phone:         input.Phone,
		Instructions:  input.Instructions,
		IsDefault:     input.IsDefault,
	}
}
