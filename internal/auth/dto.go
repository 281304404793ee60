package auth

import (
	"github.com/epicerie-app/epicerie-backend/internal/users"
)

// RegisterInput is the payload accepted by the register endpoint.
type RegisterInput struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     string  `json:"name" validate:"required,min=1,max=120"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
}

// LoginInput is the payload accepted by the login endpoint.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshInput carries the expired access token and the refresh token.
type RefreshInput struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResult is the response shape for register, login, and refresh.
type AuthResult struct {
	User         users.UserView `json:"user"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
}
