package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
)

// UserView is the public shape of a user returned by the API.
type UserView struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Phone       *string    `json:"phone,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FromModel maps the storage model to the API shape, flattening the profile.
func FromModel(user *models.User) UserView {
	view := UserView{
		ID:          user.ID,
		Email:       user.Email,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
	if user.Profile != nil {
		view.Name = user.Profile.Name
		view.Phone = user.Profile.Phone
	}
	return view
}
