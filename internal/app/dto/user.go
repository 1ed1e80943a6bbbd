package dto

import (
	"time"

	domainuser "karta/internal/domain/user"
)

// UserProfile is the public account shape.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthResponse pairs a profile with the issued session token.
type AuthResponse struct {
	User  UserProfile `json:"user"`
	Token string      `json:"token"`
}

func NewAuthResponse(u *domainuser.User, token string) AuthResponse {
	resp := AuthResponse{Token: token}
	if u != nil {
		resp.User = UserProfile{
			ID:        string(u.ID),
			Email:     u.Email,
			Name:      u.Name,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		}
	}
	return resp
}
