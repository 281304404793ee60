package auth

import (
	"context"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
	"github.com/epicerie-app/epicerie-backend/pkg/retry"
	"github.com/epicerie-app/epicerie-backend/pkg/security"
)

// Register creates the identity row and then the profile as two separate
// writes. The profile insert is retried; if it never lands the user row is
// deactivated so a half-provisioned account cannot log in.
func (s *service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	profile := &models.Profile{
		UserID: user.ID,
		Name:   input.Name,
		Phone:  input.Phone,
	}
	policy := retry.Policy{Attempts: s.profile.CreateAttempts, Backoff: s.profile.CreateBackoff}
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		return s.repo.CreateProfile(ctx, profile)
	})
	if err != nil {
		if deactivateErr := s.repo.Deactivate(ctx, user.ID); deactivateErr != nil {
			s.logg.Error(ctx, "failed to deactivate half-provisioned user", deactivateErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
	}
	user.Profile = profile

	return s.openSession(ctx, user)
}
