package dto

import (
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
)

type UpdateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=50"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,strongpassword"`
}

// UpdateUserRequest is the admin form; it may also change the admin flag
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=50"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,strongpassword"`
	IsAdmin  *bool   `json:"is_admin"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse drops the password hash and the refresh-token records
func NewUserResponse(u *model.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func NewUserResponses(users []model.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, *NewUserResponse(&users[i]))
	}
	return out
}
