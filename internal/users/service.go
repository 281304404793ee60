package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

// ProfileUpdateInput is the payload for editing the shopper profile.
type ProfileUpdateInput struct {
	Name  string  `json:"name" validate:"required,min=1,max=120"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
}

// Service covers the profile surface of the account: the identity fields stay
// with the auth service.
type Service interface {
	UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileUpdateInput) (*UserView, error)
}

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateProfile(ctx context.Context, profile *models.Profile) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, name string, phone *string) error
}

type service struct {
	repo profileRepository
}

// NewService constructs the users service.
func NewService(repo profileRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return &service{repo: repo}, nil
}

// UpdateProfile sets the user's display name and phone. An account that was
// provisioned without a profile row gets one here instead of failing.
func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileUpdateInput) (*UserView, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	if user.Profile == nil {
		profile := &models.Profile{
			UserID: userID,
			Name:   input.Name,
			Phone:  input.Phone,
		}
		if err := s.repo.CreateProfile(ctx, profile); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
		}
		user.Profile = profile
	} else {
		if err := s.repo.UpdateProfile(ctx, userID, input.Name, input.Phone); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
		}
		user.Profile.Name = input.Name
		user.Profile.Phone = input.Phone
	}

	view := FromModel(user)
	return &view, nil
}
